// Package web fetches pages over HTTP and extracts their paragraph text.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

// Ensure Fetcher implements the interface.
var _ driven.WebFetcher = (*Fetcher)(nil)

// Default configuration values.
const (
	DefaultTimeout   = domain.DefaultFetchTimeout
	DefaultRateLimit = domain.DefaultFetchRateLimit
	DefaultUserAgent = "ragpipe"

	// maxBodySize caps how much of a response is read.
	maxBodySize = 20 << 20
)

// Config holds configuration for the fetcher.
type Config struct {
	// Timeout bounds each request (default: 30s).
	Timeout time.Duration

	// RateLimit is requests per second across all fetches. Zero or less disables limiting.
	RateLimit float64

	// UserAgent is sent with every request (default: ragpipe).
	UserAgent string

	// Client overrides the HTTP client. Its Timeout is left untouched.
	Client *http.Client
}

// Fetcher downloads pages and returns the text of their <p> elements.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// New creates a fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Fetcher{
		client:    client,
		limiter:   limiter,
		userAgent: cfg.UserAgent,
	}
}

// Fetch returns the paragraph text of the page at url, joined by single spaces.
// A transport failure or non-2xx status is a *domain.NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", &domain.NetworkError{URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", &domain.NetworkError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &domain.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.NetworkError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	text, err := Paragraphs(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &domain.NetworkError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return text, nil
}

// Paragraphs returns the text content of every <p> element in document order,
// joined by single spaces. Text of nested elements is included. Each
// paragraph is trimmed but otherwise kept as written, empty ones included.
func Paragraphs(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.P {
			parts = append(parts, strings.TrimSpace(textContent(n)))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(parts, " "), nil
}

// textContent concatenates every text node under n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
