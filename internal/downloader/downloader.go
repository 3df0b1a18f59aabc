package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync/atomic"

	"github.com/brogergvhs/bibe/internal/layout"
	"github.com/brogergvhs/bibe/internal/providers"
	"github.com/brogergvhs/bibe/internal/util"
)

// Fetcher is the subset of fetch.Client the downloader needs.
type Fetcher interface {
	Bytes(ctx context.Context, u *url.URL, referer string) ([]byte, error)
}

type Downloader struct {
	fetcher   Fetcher
	outputDir string
	workers   int
	log       providers.Logger
	progress  providers.ProgressFunc
}

func New(f Fetcher, opts providers.Options) *Downloader {
	opts = providers.NewOptions(opts)

	return &Downloader{
		fetcher:   f,
		outputDir: opts.OutputDir,
		workers:   opts.Workers,
		log:       opts.Logger,
		progress:  opts.Progress,
	}
}

// Mkdir creates the directory of every chapter.
func (d *Downloader) Mkdir(chapters []*providers.Chapter) error {
	for _, c := range chapters {
		if err := util.MkdirAll(layout.ChapterDir(d.outputDir, c)); err != nil {
			return err
		}
	}

	return nil
}

// Download saves every page not already on disk. Files are written under a
// temporary name and renamed, so a page path either holds a complete image
// or nothing. The first failure cancels the remaining pages.
func (d *Downloader) Download(ctx context.Context, pages []*providers.Page) (providers.DownloadResult, error) {
	if len(pages) == 0 {
		return providers.DownloadResult{}, nil
	}

	chapter := pages[0].Chapter
	d.log.Infof("downloading %d pages for chapter %s", len(pages), layout.FormatID(chapter.ID))

	var bar providers.Progress = nopProgress{}
	if d.progress != nil {
		bar = d.progress(filepath.Base(layout.ChapterDir("", chapter)))
	}
	bar.SetTotal(len(pages))

	var downloaded, skipped atomic.Int64
	var written atomic.Int64

	err := forEach(ctx, len(pages), d.workers, func(ctx context.Context, i int) error {
		n, saved, err := d.save(ctx, pages[i])
		if err != nil {
			return err
		}

		if saved {
			downloaded.Add(1)
			written.Add(n)
		} else {
			skipped.Add(1)
		}
		bar.PageDone(n)

		return nil
	})

	res := providers.DownloadResult{
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Bytes:      written.Load(),
	}

	if err != nil {
		bar.Abort()
		return res, fmt.Errorf("download chapter %s: %w", layout.FormatID(chapter.ID), err)
	}

	bar.MarkDone()

	return res, nil
}

func (d *Downloader) save(ctx context.Context, p *providers.Page) (int64, bool, error) {
	path := layout.PagePath(d.outputDir, p)

	if util.Exists(path) {
		d.log.Debugf("%s already exists, skip", path)
		return 0, false, nil
	}

	referer := ""
	if p.Chapter.URL != nil {
		referer = p.Chapter.URL.String()
	}

	data, err := d.fetcher.Bytes(ctx, p.Main, referer)
	if err != nil {
		if p.Fallback == nil || errors.Is(err, context.Canceled) {
			return 0, false, err
		}

		d.log.Debugf("page %d: main URL failed (%v), trying %s", p.Index, err, p.Fallback)

		data, err = d.fetcher.Bytes(ctx, p.Fallback, referer)
		if err != nil {
			return 0, false, err
		}
	}

	if err := util.AtomicWrite(path, data); err != nil {
		return 0, false, err
	}

	return int64(len(data)), true, nil
}

type nopProgress struct{}

func (nopProgress) SetTotal(int)   {}
func (nopProgress) PageDone(int64) {}
func (nopProgress) MarkDone()      {}
func (nopProgress) Abort()         {}
