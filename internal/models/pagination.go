package models

// Pagination describes list slicing metadata in responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// NewPagination normalises page/size and derives totals.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	totalPages := (total + size - 1) / size
	return &Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}
