package core

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a validated page request. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Pagination is the metadata returned alongside list results.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
	Limit       int   `json:"limit"`
}

// NewPagination computes metadata for a page of a result set holding
// total rows. totalPages is ceil(total/limit), zero for an empty set.
func NewPagination(p Page, total int64) Pagination {
	limit := p.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalCount:  total,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
		Limit:       limit,
	}
}
