package providers

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Range is an inclusive span of chapter numbers.
type Range struct {
	Begin float64
	End   float64
}

func FullRange() Range {
	return Range{Begin: math.Inf(-1), End: math.Inf(1)}
}

func (r Range) Contains(id float64) bool {
	return id >= r.Begin && id <= r.End
}

func (r Range) String() string {
	b, e := "start", "end"
	if !math.IsInf(r.Begin, 0) {
		b = strconv.FormatFloat(r.Begin, 'f', -1, 64)
	}
	if !math.IsInf(r.End, 0) {
		e = strconv.FormatFloat(r.End, 'f', -1, 64)
	}
	return b + ".." + e
}

// SelectRange keeps the chapters inside r, sorted by ID. It panics on a NaN
// ID; ParseNumber never produces one.
func SelectRange(chapters []*Chapter, r Range) []*Chapter {
	out := make([]*Chapter, 0, len(chapters))
	for _, c := range chapters {
		if math.IsNaN(c.ID) {
			panic(fmt.Sprintf("providers: chapter %q has a NaN id", c.Number))
		}
		if r.Contains(c.ID) {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })

	return out
}

// ParseNumber parses a published chapter number such as "12" or "10.5".
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)

	id, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chapter number %q", s)
	}
	if math.IsNaN(id) || math.IsInf(id, 0) || id < 0 {
		return 0, fmt.Errorf("invalid chapter number %q", s)
	}

	return id, nil
}
