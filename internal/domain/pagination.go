package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// NewPagination clamps page and size into their valid ranges.
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}

	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}

	return Pagination{Page: page, PageSize: pageSize}
}

func (p Pagination) Limit() int {
	return p.PageSize
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
