package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/brogergvhs/bibe/internal/errs"
	"github.com/brogergvhs/bibe/internal/fetch"
	"github.com/brogergvhs/bibe/internal/layout"
	"github.com/brogergvhs/bibe/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	label   string
	total   int
	done    int
	bytes   int64
	marked  bool
	aborted bool
}

func (r *recorder) SetTotal(n int) { r.mu.Lock(); r.total = n; r.mu.Unlock() }
func (r *recorder) PageDone(n int64) {
	r.mu.Lock()
	r.done++
	r.bytes += n
	r.mu.Unlock()
}
func (r *recorder) MarkDone() { r.marked = true }
func (r *recorder) Abort()    { r.aborted = true }

func imageServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/broken.png":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte("img:" + r.URL.Path))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pagesFor(t *testing.T, base string, volume string, n int) []*providers.Page {
	t.Helper()

	series := &providers.Series{Title: "Example"}
	chURL, _ := url.Parse(base + "/chapter/12")
	chapter := &providers.Chapter{ID: 12, Number: "12", Series: series, Volume: volume, URL: chURL}

	pages := make([]*providers.Page, n)
	for i := range pages {
		u, err := url.Parse(fmt.Sprintf("%s/img/%d.png", base, i+1))
		require.NoError(t, err)
		pages[i] = &providers.Page{Chapter: chapter, Index: i + 1, Main: u}
	}
	return pages
}

func newDownloader(out string, workers int, rec *recorder) *Downloader {
	f := fetch.New(nil, fetch.Options{Delay: fetch.MinDelay})
	opts := providers.Options{OutputDir: out, Workers: workers}
	if rec != nil {
		opts.Progress = func(label string) providers.Progress {
			rec.label = label
			return rec
		}
	}
	return New(f, opts)
}

func TestDownloadIsIdempotent(t *testing.T) {
	var hits atomic.Int32
	srv := imageServer(t, &hits)
	out := t.TempDir()
	pages := pagesFor(t, srv.URL, "", 3)

	d := newDownloader(out, 1, nil)
	require.NoError(t, d.Mkdir([]*providers.Chapter{pages[0].Chapter}))

	res, err := d.Download(context.Background(), pages)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Downloaded)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, int32(3), hits.Load())

	got, err := os.ReadFile(filepath.Join(out, "Example", "Example 012", "002.png"))
	require.NoError(t, err)
	assert.Equal(t, "img:/img/2.png", string(got))
	assert.Equal(t, int64(3*len("img:/img/1.png")), res.Bytes)

	res, err = d.Download(context.Background(), pages)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Downloaded)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, int32(3), hits.Load(), "second run must not fetch")
}

func TestDownloadUsesFallback(t *testing.T) {
	var hits atomic.Int32
	srv := imageServer(t, &hits)
	out := t.TempDir()

	pages := pagesFor(t, srv.URL, "", 1)
	pages[0].Main, _ = url.Parse(srv.URL + "/broken.png")
	pages[0].Fallback, _ = url.Parse(srv.URL + "/mirror/1.png")

	d := newDownloader(out, 1, nil)
	require.NoError(t, d.Mkdir([]*providers.Chapter{pages[0].Chapter}))

	res, err := d.Download(context.Background(), pages)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Downloaded)

	got, err := os.ReadFile(layout.PagePath(out, pages[0]))
	require.NoError(t, err)
	assert.Equal(t, "img:/mirror/1.png", string(got))
}

func TestDownloadFailsWithoutFallback(t *testing.T) {
	var hits atomic.Int32
	srv := imageServer(t, &hits)
	out := t.TempDir()

	pages := pagesFor(t, srv.URL, "", 1)
	pages[0].Main, _ = url.Parse(srv.URL + "/broken.png")

	rec := &recorder{}
	d := newDownloader(out, 1, rec)
	require.NoError(t, d.Mkdir([]*providers.Chapter{pages[0].Chapter}))

	_, err := d.Download(context.Background(), pages)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNetwork))
	assert.True(t, rec.aborted)
	assert.False(t, rec.marked)

	entries, err := os.ReadDir(layout.ChapterDir(out, pages[0].Chapter))
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial file may be left behind")
}

func TestDownloadMissingDirectory(t *testing.T) {
	var hits atomic.Int32
	srv := imageServer(t, &hits)

	d := newDownloader(t.TempDir(), 1, nil)
	_, err := d.Download(context.Background(), pagesFor(t, srv.URL, "", 1))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindFilesystem))
}

func TestDownloadParallelWithProgress(t *testing.T) {
	var hits atomic.Int32
	srv := imageServer(t, &hits)
	out := t.TempDir()
	pages := pagesFor(t, srv.URL, "4", 8)

	rec := &recorder{}
	d := newDownloader(out, 4, rec)
	require.NoError(t, d.Mkdir([]*providers.Chapter{pages[0].Chapter}))

	res, err := d.Download(context.Background(), pages)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Downloaded)

	assert.Equal(t, "Example 04", rec.label)
	assert.Equal(t, 8, rec.total)
	assert.Equal(t, 8, rec.done)
	assert.Equal(t, res.Bytes, rec.bytes)
	assert.True(t, rec.marked)

	for _, p := range pages {
		assert.FileExists(t, layout.PagePath(out, p))
	}
	assert.FileExists(t, filepath.Join(out, "Example", "Example 04", "012-008.png"))
}

func TestDownloadSendsChapterReferer(t *testing.T) {
	var referer atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer.Store(r.Header.Get("Referer"))
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	out := t.TempDir()
	pages := pagesFor(t, srv.URL, "", 1)
	d := newDownloader(out, 1, nil)
	require.NoError(t, d.Mkdir([]*providers.Chapter{pages[0].Chapter}))

	_, err := d.Download(context.Background(), pages)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/chapter/12", referer.Load())
}

func TestDownloadEmpty(t *testing.T) {
	res, err := newDownloader(t.TempDir(), 1, nil).Download(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestMkdirFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	d := newDownloader(blocker, 1, nil)
	err := d.Mkdir([]*providers.Chapter{{ID: 1, Series: &providers.Series{Title: "X"}}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindFilesystem))

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "mkdir", e.Op)
}

func TestForEachStopsOnError(t *testing.T) {
	var calls atomic.Int32
	err := forEach(context.Background(), 100, 1, func(ctx context.Context, i int) error {
		calls.Add(1)
		if i == 2 {
			return fmt.Errorf("boom")
		}
		return nil
	})
	require.EqualError(t, err, "boom")
	assert.Equal(t, int32(3), calls.Load())
}
