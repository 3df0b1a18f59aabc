package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type MPBProgressManager struct {
	p *mpb.Progress
}

func NewProgressManager(out io.Writer) *MPBProgressManager {
	p := mpb.New(
		mpb.WithWidth(52),
		mpb.WithOutput(out),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	return &MPBProgressManager{p: p}
}

func (pm *MPBProgressManager) Close() {
	pm.p.Wait()
}

// Register adds a bar labelled prefix, typically one per chapter.
func (pm *MPBProgressManager) Register(prefix string) *ProgressHandle {
	h := &ProgressHandle{
		pm:     pm,
		prefix: prefix,
	}
	h.initBar()
	return h
}

// ProgressHandle is a single chapter bar. It satisfies downloader.Progress.
type ProgressHandle struct {
	pm     *MPBProgressManager
	prefix string
	bar    *mpb.Bar

	total atomic.Int64
	bytes atomic.Int64

	start   time.Time
	elapsed atomic.Int64

	final atomic.Bool
}

func (h *ProgressHandle) initBar() {
	h.start = time.Now()

	h.bar = h.pm.p.New(
		0,
		mpb.BarStyle().Rbound("]"),

		mpb.PrependDecorators(
			decor.Name(h.prefix+"  "),
		),

		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d pages", decor.WCSyncWidth),
			decor.Any(func(_ decor.Statistics) string {
				return " | " + HumanBytes(h.bytes.Load())
			}),

			decor.Any(func(_ decor.Statistics) string {
				if h.final.Load() {
					return fmt.Sprintf(" | %ds", h.elapsed.Load())
				}

				return fmt.Sprintf(" | %ds", int(time.Since(h.start).Seconds()))
			}),
		),
	)
}

func (h *ProgressHandle) SetTotal(total int) {
	if h.final.Load() {
		return
	}

	h.total.Store(int64(total))
	h.bar.SetTotal(int64(total), false)
}

// PageDone advances the bar by one page; n is the number of bytes written
// (zero for skipped pages).
func (h *ProgressHandle) PageDone(n int64) {
	if h.final.Load() {
		return
	}

	h.bytes.Add(n)
	h.bar.Increment()
}

func (h *ProgressHandle) MarkDone() {
	if h.final.Swap(true) {
		return
	}

	h.elapsed.Store(int64(time.Since(h.start).Seconds()))
	h.bar.SetCurrent(h.total.Load())
	h.bar.SetTotal(h.total.Load(), true)
}

// Abort freezes the bar after a failed chapter.
func (h *ProgressHandle) Abort() {
	if h.final.Swap(true) {
		return
	}

	h.bar.Abort(false)
}
