package domain

// DefaultPageLimit is used when a listing does not name a page size.
const DefaultPageLimit = 10

// MaxPageLimit caps the page size a caller may request.
const MaxPageLimit = 100

// Page selects a 1-based page of a listing.
type Page struct {
	Number int `json:"page"`
	Limit  int `json:"limit"`
}

// All reports whether p is the zero Page, which listings treat as
// "every match, unpaginated".
func (p Page) All() bool {
	return p.Number == 0 && p.Limit == 0
}

// Normalize fills in defaults and clamps out-of-range values.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset is the number of rows skipped before the page starts.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Limit
}

// Pagination describes a page of results for API responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination builds the response envelope for page p of total rows.
func NewPagination(p Page, total int) Pagination {
	p = p.Normalize()
	pages := 0
	if total > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Page: p.Number, Limit: p.Limit, Total: total, TotalPages: pages}
}

// Window returns the [start, end) bounds of page p within n items.
func (p Page) Window(n int) (int, int) {
	if p.All() {
		return 0, n
	}
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.Normalize().Limit
	if end > n {
		end = n
	}
	return start, end
}
