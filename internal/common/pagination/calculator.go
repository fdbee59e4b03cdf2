package pagination

// CalculateOffset maps a 1-based page to a SQL OFFSET:
// (page-1) * pageSize.
func CalculateOffset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// CalculateTotalPages is ceil(total/pageSize), with a floor of one page
// so empty result sets still render as page 1 of 1.
func CalculateTotalPages(total int64, pageSize int) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
