package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

type Stats struct {
	TotalChapters atomic.Int64
	TotalPages    atomic.Int64
	SkippedPages  atomic.Int64
	TotalBytes    atomic.Int64
}

func (s *Stats) Summary(w io.Writer, elapsed time.Duration) {
	_, _ = fmt.Fprintln(w, "Download Summary:")
	_, _ = fmt.Fprintf(w, "Chapters: %d\n", s.TotalChapters.Load())
	_, _ = fmt.Fprintf(w, "Pages:    %d (skipped %d)\n", s.TotalPages.Load(), s.SkippedPages.Load())
	_, _ = fmt.Fprintf(w, "Data:     %s\n", HumanBytes(s.TotalBytes.Load()))
	_, _ = fmt.Fprintf(w, "Time:     %s\n", elapsed.Round(time.Second))
}

func HumanBytes(n int64) string {
	const unit = 1 << 10

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 2; v /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}
