package shared

import "math"

// MaxVisiblePages is the width of the page-number window in list views.
const MaxVisiblePages = 5

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata. Page is clamped into range.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if total < 0 {
		total = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	if page > totalPages {
		page = totalPages
	}
	if page <= 0 {
		page = 1
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Bounds returns the half-open item range of the current page.
func (p Pagination) Bounds() (start, end int) {
	start = (p.Page - 1) * p.PerPage
	if start > p.Total {
		start = p.Total
	}
	end = start + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

// Paginate returns the slice of items on page p.
func Paginate[T any](items []T, p Pagination) []T {
	start, end := p.Bounds()
	if start >= len(items) {
		return []T{}
	}
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// PageWindow returns up to maxVisible contiguous page numbers centred on
// current and clamped to [1, totalPages]. It returns nil for a single page.
func PageWindow(current, totalPages, maxVisible int) []int {
	if totalPages <= 1 || maxVisible <= 0 {
		return nil
	}
	start := max(1, current-maxVisible/2)
	end := min(totalPages, start+maxVisible-1)
	if end-start+1 < maxVisible {
		start = max(1, end-maxVisible+1)
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// Pager is the view model of the page navigation control.
type Pager struct {
	Visible  bool
	Current  int
	Total    int
	Pages    []int
	Prev     int
	Next     int
	CanFirst bool
	CanPrev  bool
	CanNext  bool
	CanLast  bool
	Loading  bool
}

// NewPager builds the navigation control for p. Every action is disabled
// while loading.
func NewPager(p Pagination, loading bool) Pager {
	pager := Pager{
		Visible: p.TotalPages > 1,
		Current: p.Page,
		Total:   p.TotalPages,
		Pages:   PageWindow(p.Page, p.TotalPages, MaxVisiblePages),
		Prev:    max(1, p.Page-1),
		Next:    min(max(p.TotalPages, 1), p.Page+1),
		Loading: loading,
	}
	pager.CanFirst = p.Page > 1 && !loading
	pager.CanPrev = pager.CanFirst
	pager.CanNext = p.Page < p.TotalPages && !loading
	pager.CanLast = pager.CanNext
	return pager
}
