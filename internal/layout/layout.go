// Package layout maps series, chapters and pages to their location on disk:
//
//	<root>/<series>/<series> <volume or chapter>/<page file>
//
// Every function is pure; nothing here touches the filesystem.
package layout

import (
	"fmt"
	"math"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/brogergvhs/bibe/internal/providers"
)

const defaultExt = "jpg"

var (
	illegalChars    = regexp.MustCompile(`[/\\?<>:*|"]`)
	illegalTrailing = regexp.MustCompile(`[. ]+$`)
)

// Sanitize makes name usable as a single path component on both POSIX and
// Windows filesystems.
func Sanitize(name string) string {
	name = illegalTrailing.ReplaceAllString(name, "")
	return illegalChars.ReplaceAllString(name, "_")
}

// FormatID pads the integer part of a chapter number to three digits and
// keeps any fractional digits: 7 -> "007", 30.5 -> "030.5".
func FormatID(id float64) string {
	whole, frac := math.Modf(id)
	if frac == 0 {
		return fmt.Sprintf("%03d", int64(whole))
	}

	s := strconv.FormatFloat(id, 'f', -1, 64)
	intPart, fracPart, _ := strings.Cut(s, ".")
	if len(intPart) < 3 {
		intPart = strings.Repeat("0", 3-len(intPart)) + intPart
	}

	return intPart + "." + fracPart
}

func SeriesDir(root string, s *providers.Series) string {
	return filepath.Join(root, Sanitize(s.Title))
}

// ChapterDir is shared by every chapter of a volume when the volume is known.
func ChapterDir(root string, c *providers.Chapter) string {
	var name string
	if c.Volume != "" {
		name = fmt.Sprintf("%s %s", c.Series.Title, padVolume(c.Volume))
	} else {
		name = fmt.Sprintf("%s %s", c.Series.Title, FormatID(c.ID))
	}

	return filepath.Join(SeriesDir(root, c.Series), Sanitize(name))
}

// PagePath prefixes the file name with the chapter number inside volume
// directories so chapters sharing one directory do not collide.
func PagePath(root string, p *providers.Page) string {
	ext := Ext(p.Main.Path)

	var name string
	if p.Chapter.Volume != "" {
		name = fmt.Sprintf("%s-%03d.%s", FormatID(p.Chapter.ID), p.Index, ext)
	} else {
		name = fmt.Sprintf("%03d.%s", p.Index, ext)
	}

	return filepath.Join(ChapterDir(root, p.Chapter), name)
}

// CBZPath is where the archive of a chapter directory goes.
func CBZPath(root string, c *providers.Chapter) string {
	return ChapterDir(root, c) + ".cbz"
}

// Ext returns the extension of a URL path without the dot, or "jpg".
func Ext(urlPath string) string {
	ext := strings.TrimPrefix(path.Ext(urlPath), ".")
	if ext == "" {
		return defaultExt
	}

	return ext
}

func padVolume(v string) string {
	if len(v) < 2 {
		return strings.Repeat("0", 2-len(v)) + v
	}

	return v
}
