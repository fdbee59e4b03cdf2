package pagination

// Metadata describes where a page sits in the full result set.
type Metadata struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// NewMetadata derives Metadata for one page of a result set of the
// given total size.
func NewMetadata(params Params, total int64) Metadata {
	totalPages := CalculateTotalPages(total, params.PageSize)
	return Metadata{
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
	}
}
