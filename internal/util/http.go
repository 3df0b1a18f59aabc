package util

import (
	"bufio"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"

	"github.com/brogergvhs/bibe/internal/errs"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type HTTPClientOptions struct {
	Timeout    time.Duration
	UserAgent  string
	Cookie     string
	CookieFile string
	// CloudflareBypass wraps the transport with browser-like TLS and header
	// settings for sites fronted by Cloudflare's basic bot check.
	CloudflareBypass bool
	Transport        http.RoundTripper
	DebugLogger      interface {
		Debugf(string, ...any)
	}
}

func NewHTTPClient(opts HTTPClientOptions) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	var baseTransport http.RoundTripper
	if opts.Transport != nil {
		baseTransport = opts.Transport
	} else {
		baseTransport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}

	if opts.CloudflareBypass {
		baseTransport = cloudflarebp.AddCloudFlareByPass(baseTransport)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	cookieHeader, err := joinCookies(opts.Cookie, opts.CookieFile)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: roundTripper{
			base:         baseTransport,
			ua:           ua,
			cookieHeader: cookieHeader,
			log:          opts.DebugLogger,
		},
		Jar: jar,
	}

	if opts.DebugLogger != nil {
		opts.DebugLogger.Debugf("HTTP client initialized (timeout=%s, ua=%q, cookieFile=%q, cfBypass=%t)",
			opts.Timeout, ua, opts.CookieFile, opts.CloudflareBypass)
	}

	return client, nil
}

type roundTripper struct {
	base         http.RoundTripper
	ua           string
	cookieHeader string
	log          interface{ Debugf(string, ...any) }
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())

	if rt.ua != "" {
		req.Header.Set("User-Agent", rt.ua)
	}

	if rt.cookieHeader != "" && req.Header.Get("Cookie") == "" {
		req.Header.Set("Cookie", rt.cookieHeader)
	}

	if rt.log != nil {
		rt.log.Debugf("HTTP %s %s", req.Method, req.URL.String())
	}

	return rt.base.RoundTrip(req)
}

func joinCookies(inline, file string) (string, error) {
	s := strings.TrimSpace(inline)
	if file == "" {
		return s, nil
	}

	b, err := os.ReadFile(file)
	if err != nil {
		return "", errs.Filesystem("read", file, err)
	}

	// first non-empty line
	sc := bufio.NewScanner(strings.NewReader(string(b)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if s == "" {
			return line, nil
		}
		return s + "; " + line, nil
	}

	return s, nil
}
