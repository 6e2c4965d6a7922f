package pagination

const (
	// DefaultLimit is the page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds page/limit inputs from controllers.
type Params struct {
	Page  int
	Limit int
}

// Normalize clamps the page to >= 1 and the limit to (0, MaxLimit].
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

// Offset is the number of rows to skip for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// NormalizeLimit enforces the default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Page is one page of results plus enough metadata to render pagers.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NewPage assembles a Page from normalized params and a total row count.
func NewPage[T any](items []T, params Params, total int64) Page[T] {
	n := params.Normalize()
	pages := int((total + int64(n.Limit) - 1) / int64(n.Limit))
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: n.Page, Limit: n.Limit, Total: total, TotalPages: pages}
}
