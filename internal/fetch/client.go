// Package fetch is the paced, retrying HTTP retrieval layer shared by every
// site strategy.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/bibe/internal/errs"
)

const (
	// MinDelay is the floor applied to the inter-request delay.
	MinDelay = 10 * time.Millisecond

	DefaultMaxBodyBytes int64 = 64 << 20
)

type DebugLogger interface {
	Debugf(string, ...any)
}

type Options struct {
	Delay      time.Duration
	MaxRetries int
	// MaxBodyBytes caps a response body; zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	Logger       DebugLogger
}

type Client struct {
	http         *http.Client
	delay        time.Duration
	maxRetries   int
	maxBodyBytes int64
	log          DebugLogger

	mu   sync.Mutex
	next time.Time
}

func New(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	delay := opts.Delay
	if delay < MinDelay {
		delay = MinDelay
	}

	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}

	limit := opts.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	return &Client{
		http:         httpClient,
		delay:        delay,
		maxRetries:   retries,
		maxBodyBytes: limit,
		log:          opts.Logger,
	}
}

// HTML fetches u and parses the body as an HTML document.
func (c *Client) HTML(ctx context.Context, u *url.URL) (*goquery.Document, error) {
	body, err := c.get(ctx, u, "text/html", "")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Payload(u.String(), err)
	}

	// Relative links in the document resolve against the page URL.
	doc.Url = u

	return doc, nil
}

// JSON fetches u and decodes the body into v.
func (c *Client) JSON(ctx context.Context, u *url.URL, v any) error {
	body, err := c.get(ctx, u, "application/json", "")
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errs.Payload(u.String(), err)
	}

	return nil
}

// Bytes fetches u as raw bytes, sending referer as the Referer header when
// non-empty.
func (c *Client) Bytes(ctx context.Context, u *url.URL, referer string) ([]byte, error) {
	return c.get(ctx, u, "image/*,*/*;q=0.8", referer)
}

func (c *Client) get(ctx context.Context, u *url.URL, accept, referer string) ([]byte, error) {
	target := u.String()

	for attempt := 0; ; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, errs.Network(target, err)
		}

		body, retryAfter, err := c.do(ctx, target, accept, referer)
		c.done()
		if err == nil {
			return body, nil
		}

		if retryAfter < 0 || attempt >= c.maxRetries {
			return nil, errs.Network(target, err)
		}

		backoff := c.delay
		if retryAfter > 0 {
			backoff = retryAfter
		}

		c.debugf("retrying %s in %s (attempt %d/%d): %v", target, backoff, attempt+1, c.maxRetries, err)

		select {
		case <-ctx.Done():
			return nil, errs.Network(target, ctx.Err())
		case <-time.After(backoff):
		}
	}
}

// do performs a single attempt. A negative retryAfter marks the failure as
// terminal; zero means retry after the default delay.
func (c *Client) do(ctx context.Context, target, accept, referer string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, -1, err
	}

	req.Header.Set("Accept", accept)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	c.debugf("GET %s", target)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, -1, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := readLimited(resp.Body, c.maxBodyBytes)
		if err != nil {
			return nil, -1, err
		}
		return body, 0, nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode}
	if !retryable(resp.StatusCode) {
		return nil, -1, statusErr
	}

	return nil, parseRetryAfter(resp.Header.Get("Retry-After")), statusErr
}

// wait blocks until the pacer grants the next request slot. Every attempt
// waits at least the delay, and slots are reserved under the lock so
// concurrent callers are spaced in aggregate.
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	slot := time.Now().Add(c.delay)
	if slot.Before(c.next) {
		slot = c.next
	}
	c.next = slot.Add(c.delay)
	c.mu.Unlock()

	t := time.NewTimer(time.Until(slot))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// done pushes the next slot to a full delay after a response has been
// read, so slow responses do not eat into the delay.
func (c *Client) done() {
	c.mu.Lock()
	if next := time.Now().Add(c.delay); next.After(c.next) {
		c.next = next
	}
	c.mu.Unlock()
}

func (c *Client) debugf(format string, args ...any) {
	if c.log != nil {
		c.log.Debugf(format, args...)
	}
}

type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}

	return time.Duration(secs) * time.Second
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds maximum allowed size (%d bytes)", limit)
	}
	return data, nil
}
