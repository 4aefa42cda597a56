// forum/pagination.go
package forum

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageWindow is a normalized offset/limit request. Page numbers below 1
// and out-of-range limits are coerced rather than rejected, matching how
// the list endpoints treat query parameters.
type PageWindow struct {
	Page   int
	Limit  int
	Offset int
}

func NewPageWindow(page, limit int) PageWindow {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return PageWindow{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// PaginationData holds all the necessary info for rendering pagination
// controls alongside a page of results.
type PaginationData struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
	NextPage    int  `json:"next_page"`
	PrevPage    int  `json:"prev_page"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

func (w PageWindow) Pagination(totalCount int) PaginationData {
	totalPages := (totalCount + w.Limit - 1) / w.Limit
	return PaginationData{
		CurrentPage: w.Page,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
		NextPage:    w.Page + 1,
		PrevPage:    w.Page - 1,
		HasNext:     w.Page < totalPages,
		HasPrev:     w.Page > 1,
	}
}
