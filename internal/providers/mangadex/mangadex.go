// Package mangadex downloads from mangadex.org through its JSON API.
package mangadex

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/brogergvhs/bibe/internal/downloader"
	"github.com/brogergvhs/bibe/internal/errs"
	"github.com/brogergvhs/bibe/internal/fetch"
	"github.com/brogergvhs/bibe/internal/providers"
)

const DefaultAPIBase = "https://api.mangadex.org/v2"

var seriesID = regexp.MustCompile(`^/title/(\d+)`)

func init() {
	providers.Register("mangadex", []string{"mangadex.org"}, func(opts providers.Options) (providers.Provider, error) {
		return New(opts, DefaultAPIBase)
	})
}

type Provider struct {
	api    *url.URL
	client *fetch.Client
	dl     *downloader.Downloader
	log    providers.Logger
}

// New returns a provider talking to the API rooted at apiBase.
func New(opts providers.Options, apiBase string) (*Provider, error) {
	opts = providers.NewOptions(opts)

	api, err := url.Parse(strings.TrimRight(apiBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("mangadex: invalid API base %q: %w", apiBase, err)
	}

	client := opts.Fetcher()

	return &Provider{
		api:    api,
		client: client,
		dl:     downloader.New(client, opts),
		log:    opts.Logger,
	}, nil
}

func (p *Provider) Name() string { return "mangadex" }

func (p *Provider) Series(ctx context.Context, u *url.URL) (*providers.Series, error) {
	endpoint, err := p.seriesEndpoint(u)
	if err != nil {
		return nil, err
	}

	p.log.Infof("scraping series info from %s", endpoint)

	var resp response[manga]
	if err := p.client.JSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Data.Title == "" {
		return nil, errs.Scraping(endpoint.String(), "series title is missing")
	}

	return &providers.Series{
		Title: resp.Data.Title,
		URL:   p.endpoint("manga", resp.Data.ID),
	}, nil
}

func (p *Provider) Chapters(ctx context.Context, series *providers.Series, filter providers.Filter) ([]*providers.Chapter, error) {
	p.log.Infof("scraping chapter links for series %s", series.Title)

	u := *series.URL
	u.RawQuery = "include=chapters"

	var resp response[mangaWithChapters]
	if err := p.client.JSON(ctx, &u, &resp); err != nil {
		return nil, err
	}

	chapters, err := p.extractChapters(resp.Data, series, filter)
	if err != nil {
		return nil, fmt.Errorf("scrape chapters from %s: %w", u.String(), err)
	}
	p.log.Debugf("found %d chapters", len(chapters))

	chapters = providers.SelectRange(chapters, filter.Range)
	p.log.Debugf("selected %d chapters", len(chapters))

	return chapters, nil
}

func (p *Provider) extractChapters(data mangaWithChapters, series *providers.Series, filter providers.Filter) ([]*providers.Chapter, error) {
	groupNames := make(map[uint32]string, len(data.Groups))
	for _, g := range data.Groups {
		groupNames[g.ID] = g.Name
	}

	var listed []chapter
	for _, c := range data.Chapters {
		if filter.Language == "" || c.Language == filter.Language {
			listed = append(listed, c)
		}
	}

	listed = providers.Dedup(listed, func(c chapter) providers.Listing {
		names := make([]string, 0, len(c.Groups))
		for _, id := range c.Groups {
			if name, ok := groupNames[id]; ok {
				names = append(names, name)
			}
		}
		return providers.Listing{Key: c.Chapter, Groups: names, Timestamp: c.Timestamp}
	}, filter.PreferredGroups)

	out := make([]*providers.Chapter, 0, len(listed))
	for _, c := range listed {
		id, err := providers.ParseNumber(c.Chapter)
		if err != nil {
			return nil, errs.Scraping(series.URL.String(), "chapter %d: %v", c.ID, err)
		}

		out = append(out, &providers.Chapter{
			ID:     id,
			Number: c.Chapter,
			Series: series,
			Volume: c.Volume,
			URL:    p.endpoint("chapter", c.ID),
		})
	}

	return out, nil
}

func (p *Provider) Pages(ctx context.Context, chapter *providers.Chapter) ([]*providers.Page, error) {
	p.log.Infof("scraping page links for chapter %s", chapter.Number)

	var resp response[chapterDetail]
	if err := p.client.JSON(ctx, chapter.URL, &resp); err != nil {
		return nil, err
	}

	pages, err := extractPages(resp.Data, chapter)
	if err != nil {
		return nil, fmt.Errorf("scrape pages from %s: %w", chapter.URL.String(), err)
	}
	p.log.Debugf("found %d pages in chapter %s", len(pages), chapter.Number)

	return pages, nil
}

func extractPages(d chapterDetail, chapter *providers.Chapter) ([]*providers.Page, error) {
	src := chapter.URL.String()

	if d.Hash == "" {
		return nil, errs.Scraping(src, "image hash is missing")
	}

	server, err := parseServer(src, d.Server)
	if err != nil {
		return nil, err
	}

	var fallback *url.URL
	if d.ServerFallback != "" {
		if fallback, err = parseServer(src, d.ServerFallback); err != nil {
			return nil, err
		}
	}

	pages := make([]*providers.Page, 0, len(d.Pages))
	for i, name := range d.Pages {
		ref, err := url.Parse(d.Hash + "/" + name)
		if err != nil {
			return nil, errs.Scraping(src, "invalid page %q: %v", name, err)
		}

		page := &providers.Page{
			Chapter: chapter,
			Index:   i + 1,
			Main:    server.ResolveReference(ref),
		}
		if fallback != nil {
			page.Fallback = fallback.ResolveReference(ref)
		}

		pages = append(pages, page)
	}

	return pages, nil
}

func (p *Provider) Mkdir(chapters []*providers.Chapter) error {
	return p.dl.Mkdir(chapters)
}

func (p *Provider) DownloadAll(ctx context.Context, pages []*providers.Page) (providers.DownloadResult, error) {
	return p.dl.Download(ctx, pages)
}

func (p *Provider) seriesEndpoint(u *url.URL) (*url.URL, error) {
	m := seriesID.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, errs.Scraping(u.String(), "series ID not found")
	}

	return p.api.JoinPath("manga", m[1]), nil
}

func (p *Provider) endpoint(kind string, id uint64) *url.URL {
	return p.api.JoinPath(kind, fmt.Sprint(id))
}

// parseServer parses an image server base URL, making sure it ends with a
// slash so page paths are appended rather than replacing its last segment.
func parseServer(src, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return nil, errs.Scraping(src, "invalid image server %q", raw)
	}

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return u, nil
}
