package generic

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/bibe/internal/downloader"
	"github.com/brogergvhs/bibe/internal/errs"
	"github.com/brogergvhs/bibe/internal/fetch"
	"github.com/brogergvhs/bibe/internal/providers"
)

func init() {
	for _, rules := range Builtin {
		providers.Register(rules.Name, rules.Hosts, func(opts providers.Options) (providers.Provider, error) {
			return New(rules, opts), nil
		})
	}
}

type Scraper struct {
	rules  Rules
	client *fetch.Client
	dl     *downloader.Downloader
	log    providers.Logger
}

func New(rules Rules, opts providers.Options) *Scraper {
	opts = providers.NewOptions(opts)
	client := opts.Fetcher()

	return &Scraper{
		rules:  rules,
		client: client,
		dl:     downloader.New(client, opts),
		log:    opts.Logger,
	}
}

func (s *Scraper) Name() string { return s.rules.Name }

func (s *Scraper) Series(ctx context.Context, u *url.URL) (*providers.Series, error) {
	s.log.Infof("scraping series info from %s", u)

	doc, err := s.client.HTML(ctx, u)
	if err != nil {
		return nil, err
	}

	series, err := s.seriesFromDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("scrape series from %s: %w", u, err)
	}

	if series.Pagination.Paginated() {
		s.log.Debugf("scraped info for series %q: %d chapters, %d per page",
			series.Title, series.Pagination.ChapterCount, series.Pagination.PageSize)
	}

	return series, nil
}

func (s *Scraper) seriesFromDoc(doc *goquery.Document) (*providers.Series, error) {
	src := doc.Url.String()

	title, err := s.value(doc.Selection, src, s.rules.TitleSelector, s.rules.TitleAttr)
	if err != nil {
		return nil, err
	}

	rawURL, err := s.value(doc.Selection, src, s.rules.URLSelector, s.rules.URLAttr)
	if err != nil {
		return nil, err
	}

	canonical, err := resolveURL(doc.Url, rawURL)
	if err != nil {
		return nil, errs.Scraping(src, "invalid series URL %q: %v", rawURL, err)
	}

	series := &providers.Series{Title: title, URL: canonical}

	if s.rules.Paginated {
		series.Pagination, err = s.inferPagination(doc, series)
		if err != nil {
			return nil, err
		}
	}

	return series, nil
}

func (s *Scraper) inferPagination(doc *goquery.Document, series *providers.Series) (providers.Pagination, error) {
	chapters, err := s.chaptersFromDoc(doc, series)
	if err != nil {
		return providers.Pagination{}, fmt.Errorf("infer pagination: %w", err)
	}

	if len(chapters) == 0 {
		return providers.Pagination{}, errs.Scraping(doc.Url.String(), "no chapter in listing, cannot infer pagination")
	}

	return providers.Pagination{
		ChapterCount: int(chapters[0].ID),
		PageSize:     len(chapters),
	}, nil
}

func (s *Scraper) Chapters(ctx context.Context, series *providers.Series, filter providers.Filter) ([]*providers.Chapter, error) {
	s.log.Infof("scraping chapter links for series %s", series.Title)

	var chapters []*providers.Chapter

	for _, u := range s.listingURLs(series, filter.Range) {
		doc, err := s.client.HTML(ctx, u)
		if err != nil {
			return nil, err
		}

		found, err := s.chaptersFromDoc(doc, series)
		if err != nil {
			return nil, fmt.Errorf("scrape chapters from %s: %w", u, err)
		}

		chapters = append(chapters, found...)
	}
	s.log.Debugf("found %d chapters", len(chapters))

	chapters = providers.Dedup(chapters, func(c *providers.Chapter) providers.Listing {
		return providers.Listing{Key: c.Number}
	}, nil)

	chapters = providers.SelectRange(chapters, filter.Range)
	s.log.Debugf("selected %d chapters", len(chapters))

	return chapters, nil
}

// listingURLs returns the listing pages covering r, in fetch order.
func (s *Scraper) listingURLs(series *providers.Series, r providers.Range) []*url.URL {
	if !s.rules.Paginated || !series.Pagination.Paginated() {
		return []*url.URL{series.URL}
	}

	first, last := series.Pagination.PageSpan(r)

	urls := make([]*url.URL, 0, last-first+1)
	for page := first; page <= last; page++ {
		u := *series.URL
		q := u.Query()
		q.Set(s.rules.PageParam, strconv.Itoa(page))
		u.RawQuery = q.Encode()
		urls = append(urls, &u)
	}

	return urls
}

func (s *Scraper) chaptersFromDoc(doc *goquery.Document, series *providers.Series) ([]*providers.Chapter, error) {
	src := doc.Url.String()

	var (
		out      []*providers.Chapter
		firstErr error
	)

	doc.Find(s.rules.ChapterSelector).EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		c, err := s.chapterFromEntry(entry, src, series, doc.Url)
		if err != nil {
			firstErr = err
			return false
		}

		out = append(out, c)
		return true
	})

	if firstErr != nil {
		return nil, firstErr
	}

	return out, nil
}

func (s *Scraper) chapterFromEntry(entry *goquery.Selection, src string, series *providers.Series, base *url.URL) (*providers.Chapter, error) {
	link := entry
	if s.rules.LinkSelector != "" {
		link = entry.Find(s.rules.LinkSelector).First()
		if link.Length() == 0 {
			return nil, errs.Scraping(src, "chapter link %q not found", s.rules.LinkSelector)
		}
	}

	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, errs.Scraping(src, "chapter URL not found")
	}

	chapterURL, err := resolveURL(base, href)
	if err != nil {
		return nil, errs.Scraping(src, "invalid chapter URL %q: %v", href, err)
	}

	var number, volume string

	switch s.rules.NumberFrom {
	case NumberFromAttr:
		v, ok := entry.Attr(s.rules.NumberAttr)
		if !ok {
			return nil, errs.Scraping(src, "chapter number attribute %q not found", s.rules.NumberAttr)
		}
		number = strings.TrimSpace(v)

	case NumberFromURL:
		segment := path.Base(strings.TrimRight(chapterURL.Path, "/"))
		number = segment
		if s.rules.NumberPattern != nil {
			if number, volume, err = matchNumber(s.rules, segment); err != nil {
				return nil, errs.Scraping(src, "chapter %s: %v", chapterURL, err)
			}
		}

	case NumberFromTitle:
		title, ok := link.Attr(s.rules.NumberAttr)
		if !ok {
			return nil, errs.Scraping(src, "chapter title attribute %q not found", s.rules.NumberAttr)
		}
		if number, volume, err = matchNumber(s.rules, title); err != nil {
			return nil, errs.Scraping(src, "%v", err)
		}
	}

	id, err := providers.ParseNumber(number)
	if err != nil {
		return nil, errs.Scraping(src, "%v", err)
	}

	return &providers.Chapter{
		ID:     id,
		Number: number,
		Series: series,
		Volume: volume,
		URL:    chapterURL,
	}, nil
}

func matchNumber(rules Rules, text string) (number, volume string, err error) {
	re := rules.NumberPattern

	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", "", fmt.Errorf("cannot match chapter number in %q", text)
	}

	if i := re.SubexpIndex("id"); i >= 0 {
		number = m[i]
	}
	if i := re.SubexpIndex("volume"); i >= 0 {
		volume = m[i]
	}

	return number, volume, nil
}

func (s *Scraper) Pages(ctx context.Context, chapter *providers.Chapter) ([]*providers.Page, error) {
	s.log.Infof("scraping page links for chapter %s", chapter.Number)

	doc, err := s.client.HTML(ctx, chapter.URL)
	if err != nil {
		return nil, err
	}

	pages, err := s.pagesFromDoc(doc, chapter)
	if err != nil {
		return nil, fmt.Errorf("scrape pages from %s: %w", chapter.URL, err)
	}
	s.log.Debugf("found %d pages in chapter %s", len(pages), chapter.Number)

	return pages, nil
}

func (s *Scraper) pagesFromDoc(doc *goquery.Document, chapter *providers.Chapter) ([]*providers.Page, error) {
	src := doc.Url.String()

	var (
		pages    []*providers.Page
		firstErr error
	)

	doc.Find(s.rules.PageSelector).EachWithBreak(func(i int, img *goquery.Selection) bool {
		raw, ok := img.Attr(s.rules.PageAttr)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			firstErr = errs.Scraping(src, "page URL attribute %q not found", s.rules.PageAttr)
			return false
		}

		u, err := resolveURL(doc.Url, raw)
		if err != nil {
			firstErr = errs.Scraping(src, "invalid page URL %q: %v", raw, err)
			return false
		}

		pages = append(pages, &providers.Page{Chapter: chapter, Index: i + 1, Main: u})
		return true
	})

	if firstErr != nil {
		return nil, firstErr
	}

	return pages, nil
}

func (s *Scraper) Mkdir(chapters []*providers.Chapter) error {
	return s.dl.Mkdir(chapters)
}

func (s *Scraper) DownloadAll(ctx context.Context, pages []*providers.Page) (providers.DownloadResult, error) {
	return s.dl.Download(ctx, pages)
}

// value returns the trimmed text (attr == "") or attribute of the first
// element matching selector.
func (s *Scraper) value(root *goquery.Selection, src, selector, attr string) (string, error) {
	sel := root.Find(selector).First()
	if sel.Length() == 0 {
		return "", errs.Scraping(src, "%q not found", selector)
	}

	var v string
	if attr == "" {
		v = sel.Text()
	} else {
		var ok bool
		if v, ok = sel.Attr(attr); !ok {
			return "", errs.Scraping(src, "%q has no %s attribute", selector, attr)
		}
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return "", errs.Scraping(src, "%q is empty", selector)
	}

	return v, nil
}

func resolveURL(base *url.URL, href string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}

	if u.IsAbs() || base == nil {
		return u, nil
	}

	return base.ResolveReference(u), nil
}
