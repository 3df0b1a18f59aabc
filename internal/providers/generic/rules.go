package generic

import "regexp"

// NumberSource says where a chapter entry carries its number.
type NumberSource int

const (
	// NumberFromAttr reads Rules.NumberAttr on the chapter entry.
	NumberFromAttr NumberSource = iota
	// NumberFromURL reads the last path segment of the chapter link.
	NumberFromURL
	// NumberFromTitle matches Rules.NumberPattern against Rules.NumberAttr
	// of the chapter link.
	NumberFromTitle
)

type Rules struct {
	Name  string
	Hosts []string

	// TitleAttr empty means the element text.
	TitleSelector string
	TitleAttr     string
	URLSelector   string
	URLAttr       string

	ChapterSelector string
	// LinkSelector is relative to the chapter entry; empty means the entry
	// is the link.
	LinkSelector string
	NumberFrom   NumberSource
	NumberAttr   string
	// NumberPattern has an "id" group and an optional "volume" group. When
	// set with NumberFromURL it is matched against the path segment.
	NumberPattern *regexp.Regexp

	PageSelector string
	PageAttr     string

	// Paginated listings put the newest chapters first and are inferred
	// from the first page: its newest chapter number is the chapter count
	// and its entry count is the page size.
	Paginated bool
	PageParam string
}

var (
	Webtoons = Rules{
		Name:            "webtoons",
		Hosts:           []string{"webtoons.com", "m.webtoons.com"},
		TitleSelector:   `meta[property="og:title"]`,
		TitleAttr:       "content",
		URLSelector:     `meta[property="og:url"]`,
		URLAttr:         "content",
		ChapterSelector: "#_listUl li",
		LinkSelector:    "a",
		NumberFrom:      NumberFromAttr,
		NumberAttr:      "data-episode-no",
		PageSelector:    "#_imageList img",
		PageAttr:        "data-url",
		Paginated:       true,
		PageParam:       "page",
	}

	Mangakakalot = Rules{
		Name:            "mangakakalot",
		Hosts:           []string{"mangakakalot.com"},
		TitleSelector:   ".manga-info-text h1",
		URLSelector:     `meta[property="og:url"]`,
		URLAttr:         "content",
		ChapterSelector: ".chapter-list .row a",
		NumberFrom:      NumberFromTitle,
		NumberAttr:      "title",
		NumberPattern:   regexp.MustCompile(`(?i)(?:Vol.(?P<volume>\d+) )?Chapter (?P<id>\d+(?:\.\d+)?)`),
		PageSelector:    ".container-chapter-reader img",
		PageAttr:        "src",
	}

	Webtoonscan = Rules{
		Name:            "webtoonscan",
		Hosts:           []string{"webtoonscan.com"},
		TitleSelector:   ".post-title h1",
		URLSelector:     `meta[property="og:url"]`,
		URLAttr:         "content",
		ChapterSelector: ".version-chap li",
		LinkSelector:    "a",
		NumberFrom:      NumberFromURL,
		NumberPattern:   regexp.MustCompile(`(?i)^(?:chapter[-_])?(?P<id>\d+(?:\.\d+)?)$`),
		PageSelector:    ".wp-manga-chapter-img",
		PageAttr:        "src",
	}
)

// Builtin lists the rule tables registered at init.
var Builtin = []Rules{Webtoons, Mangakakalot, Webtoonscan}
