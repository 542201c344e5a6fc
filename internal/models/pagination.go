package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Page bounds shared by list endpoints.
const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// Paged reports whether the caller asked for a page. Requests naming neither
// a page nor a size return every matching row.
func Paged(page, size int) bool {
	return page > 0 || size > 0
}

// NormalizePage clamps page and size to usable values and returns the row offset.
func NormalizePage(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size, (page - 1) * size
}

// NewPagination describes the page served for the requested page and size.
// An unpaged listing is reported as a single page holding all total rows.
func NewPagination(page, size, total int) *Pagination {
	if !Paged(page, size) {
		return &Pagination{Page: 1, PageSize: total, TotalCount: total}
	}
	page, size, _ = NormalizePage(page, size)
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}
