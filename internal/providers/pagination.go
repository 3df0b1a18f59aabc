package providers

import "math"

// Pagination describes a chapter listing split over several pages, newest
// chapters first. Both fields are zero for single-page listings.
type Pagination struct {
	ChapterCount int
	PageSize     int
}

func (p Pagination) Paginated() bool { return p.PageSize > 0 }

// PageOf returns the 1-based listing page holding chapter.
func (p Pagination) PageOf(chapter int) int {
	if !p.Paginated() || p.ChapterCount < 1 {
		return 1
	}

	chapter = max(1, min(chapter, p.ChapterCount))

	return (p.ChapterCount - (chapter - 1) + p.PageSize - 1) / p.PageSize
}

// PageSpan returns the inclusive span of listing pages covering r. The upper
// bound of r lands on the first page and the lower bound on the last.
func (p Pagination) PageSpan(r Range) (first, last int) {
	return p.PageOf(p.clamp(math.Ceil(r.End))), p.PageOf(p.clamp(math.Floor(r.Begin)))
}

func (p Pagination) clamp(v float64) int {
	if math.IsNaN(v) {
		return 1
	}

	return int(math.Max(1, math.Min(v, float64(p.ChapterCount))))
}
