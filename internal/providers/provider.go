package providers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/brogergvhs/bibe/internal/fetch"
)

// Series is a serialized work as published by one site.
type Series struct {
	Title      string
	URL        *url.URL
	Pagination Pagination
}

// Chapter is one chapter of a Series. ID orders chapters and filters
// ranges; Number is the label as published and identifies duplicates.
type Chapter struct {
	ID     float64
	Number string
	Series *Series
	// Volume is empty when unknown.
	Volume string
	URL    *url.URL
}

func (c *Chapter) Less(other *Chapter) bool { return c.ID < other.ID }

// Page is one image of a Chapter. Index is 1-based.
type Page struct {
	Chapter  *Chapter
	Index    int
	Main     *url.URL
	Fallback *url.URL
}

type Filter struct {
	Range           Range
	Language        string
	PreferredGroups []string
}

type DownloadResult struct {
	Downloaded int
	Skipped    int
	Bytes      int64
}

func (r *DownloadResult) Add(other DownloadResult) {
	r.Downloaded += other.Downloaded
	r.Skipped += other.Skipped
	r.Bytes += other.Bytes
}

type Provider interface {
	Name() string
	Series(ctx context.Context, u *url.URL) (*Series, error)
	// Chapters returns the deduplicated chapters of series matching filter,
	// ordered by ID.
	Chapters(ctx context.Context, series *Series, filter Filter) ([]*Chapter, error)
	Pages(ctx context.Context, chapter *Chapter) ([]*Page, error)
	// Mkdir creates the directories the pages of chapters are saved in.
	Mkdir(chapters []*Chapter) error
	DownloadAll(ctx context.Context, pages []*Page) (DownloadResult, error)
}

type Logger interface {
	Debugf(string, ...any)
	Infof(string, ...any)
}

// Progress receives per-chapter download progress.
type Progress interface {
	SetTotal(total int)
	PageDone(bytes int64)
	MarkDone()
	Abort()
}

type ProgressFunc func(label string) Progress

type Options struct {
	Delay      time.Duration
	MaxRetries int
	OutputDir  string
	Workers    int
	Client     *http.Client
	Logger     Logger
	Progress   ProgressFunc
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}

// NewOptions fills unset fields of opts with defaults.
func NewOptions(opts Options) Options {
	if opts.Delay < fetch.MinDelay {
		opts.Delay = fetch.MinDelay
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	return opts
}

// Fetcher builds the retrieval client every request of a provider goes
// through.
func (o Options) Fetcher() *fetch.Client {
	return fetch.New(o.Client, fetch.Options{
		Delay:      o.Delay,
		MaxRetries: o.MaxRetries,
		Logger:     o.Logger,
	})
}
