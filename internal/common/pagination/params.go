package pagination

import (
	"net/http"
	"strconv"
)

// Params are the resolved pagination inputs for one request.
type Params struct {
	Page     int // 1-based
	PageSize int
}

// ParseQueryParams reads "page" and "page_size" from the request query.
// Values are clamped rather than rejected: unparseable or non-positive
// values fall back to defaults, oversized page_size is capped at
// config.MaxPageSize. Listing endpoints never 400 on pagination input.
func ParseQueryParams(r *http.Request, config Config) Params {
	params := Params{
		Page:     config.DefaultPage,
		PageSize: config.DefaultPageSize,
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page >= 1 {
			params.Page = page
		}
	}

	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size >= 1 {
			params.PageSize = size
		}
	}
	if params.PageSize > config.MaxPageSize {
		params.PageSize = config.MaxPageSize
	}

	return params
}

// WithDefaults normalizes directly constructed Params the same way
// ParseQueryParams normalizes query input.
func (p Params) WithDefaults(config Config) Params {
	if p.Page <= 0 {
		p.Page = config.DefaultPage
	}
	if p.PageSize <= 0 {
		p.PageSize = config.DefaultPageSize
	}
	if p.PageSize > config.MaxPageSize {
		p.PageSize = config.MaxPageSize
	}
	return p
}

// Offset is the SQL OFFSET for these params.
func (p Params) Offset() int {
	return CalculateOffset(p.Page, p.PageSize)
}
