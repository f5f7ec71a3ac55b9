// Package portal talks to the open-data portal: its syndication feed, the
// per-dataset HTML detail pages, and the remote CSV files the detail pages
// link to.
//
// Everything here degrades gracefully by design. The portal's page
// structure and file quality are outside this system's control, so
// per-dataset failures surface as typed errors the ingestion pipeline can
// log and skip; only the feed itself is load-bearing for a run.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"enrich/internal/frame"
	"enrich/internal/metrics"
)

// FetchError reports a failure to reach or read a remote resource (detail
// page or CSV). The ingestion pipeline recovers from it per row; the
// matching path surfaces it as a generic integration failure.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client wraps an http.Client with the bounded-timeout policy used for all
// portal traffic. The upstream portal is an uncontrolled dependency; no
// request may hang a run.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient creates a Client. If hc is nil a dedicated client with the
// given timeout is used.
func NewClient(hc *http.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		http:      hc,
		userAgent: "enrich-crawler/1.0",
	}
}

// get fetches a URL and returns the raw body. Non-2xx responses are errors
// carrying up to 4KB of the response body for debugging.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncCounter(metrics.CrawlHTTPRequestsTotal, 1, metrics.Labels{"status": "error"})
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	metrics.IncCounter(metrics.CrawlHTTPRequestsTotal, 1, metrics.Labels{"status": strconv.Itoa(resp.StatusCode)})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

// FetchDetail downloads and parses one dataset detail page.
func (c *Client) FetchDetail(ctx context.Context, url string) (*goquery.Document, error) {
	b, err := c.get(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(b)))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}

// FetchCSV downloads a remote CSV and decodes it into a Frame. The portal
// serves a fixed legacy single-byte encoding regardless of any declared
// charset; decoding and separator detection live in the frame package.
func (c *Client) FetchCSV(ctx context.Context, url string) (*frame.Frame, error) {
	if strings.TrimSpace(url) == "" {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("empty csv url")}
	}
	b, err := c.get(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	f, err := frame.DecodeCSV(b)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("decode csv: %w", err)}
	}
	return f, nil
}
