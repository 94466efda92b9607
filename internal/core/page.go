package core

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 10

// Page describes one window of a paginated list. Number is 1-based;
// Start and End are slice bounds into the full list.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"pageSize"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
	Start  int `json:"-"`
	End    int `json:"-"`
}

// Paginate clamps number into [1, pages] and computes the window bounds.
// An empty list still has one (empty) page.
func Paginate(total, number, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	number = min(max(number, 1), pages)
	start := min((number-1)*size, total)
	end := min(start+size, total)
	return Page{Number: number, Size: size, Total: total, Pages: pages, Start: start, End: end}
}

func (p Page) HasPrev() bool { return p.Number > 1 }
func (p Page) HasNext() bool { return p.Number < p.Pages }
func (p Page) Prev() int     { return max(p.Number-1, 1) }
func (p Page) Next() int     { return min(p.Number+1, p.Pages) }

// Slice returns the window of items described by p.
func Slice[T any](items []T, p Page) []T {
	if p.Start >= len(items) {
		return items[:0:0]
	}
	return items[p.Start:min(p.End, len(items))]
}
