// Package errs defines the failure kinds shared by the retrieval client,
// the site strategies and the downloader.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindNetwork: the request could not be completed or ended with a
	// terminal status.
	KindNetwork Kind = iota + 1
	// KindPayload: the body could not be decoded as the expected format.
	KindPayload
	// KindScraping: an expected element, attribute or field is missing or
	// malformed in an otherwise successful response.
	KindScraping
	// KindFilesystem: mkdir, write or rename failed.
	KindFilesystem
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindPayload:
		return "payload"
	case KindScraping:
		return "scraping"
	case KindFilesystem:
		return "filesystem"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind   Kind
	URL    string
	Op     string
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var msg string

	switch e.Kind {
	case KindNetwork:
		msg = "network request failed for " + e.URL
	case KindPayload:
		msg = "received invalid payload from " + e.URL
	case KindScraping:
		msg = "scraping failed"
		if e.URL != "" {
			msg += " on " + e.URL
		}
	case KindFilesystem:
		msg = fmt.Sprintf("I/O operation failed: %s %s", e.Op, e.Path)
	default:
		msg = "unknown failure"
	}

	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Network(url string, err error) error {
	return &Error{Kind: KindNetwork, URL: url, Err: err}
}

func Payload(url string, err error) error {
	return &Error{Kind: KindPayload, URL: url, Err: err}
}

// Scraping reports a structural mismatch on url; the detail should name the
// offending selector or field.
func Scraping(url, format string, args ...any) error {
	return &Error{Kind: KindScraping, URL: url, Detail: fmt.Sprintf(format, args...)}
}

func Filesystem(op, path string, err error) error {
	return &Error{Kind: KindFilesystem, Op: op, Path: path, Err: err}
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}
