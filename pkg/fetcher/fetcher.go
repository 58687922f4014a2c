// Package fetcher defines the page retrieval contract used by every site
// handler. A Fetcher returns decoded page text for a URL; a Submitter posts a
// form. Implementations cover plain HTTP (colly) and headless rendering
// (chromedp), and Retry wraps either with a fixed-interval retry policy.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "static", "dynamic").
	Type() string
}

// Submitter posts url-encoded forms. Submissions are never retried.
type Submitter interface {
	Submit(ctx context.Context, target string, form url.Values, opts Options) (Content, error)
}

// Options controls fetching behavior.
type Options struct {
	UserAgent string
	Cookie    string // raw Cookie header value
	Proxy     string // proxy URL, empty for direct
	Timeout   time.Duration
}

// Content represents fetched page data.
type Content struct {
	URL         string // final URL after redirects
	HTML        string // decoded body text
	Body        []byte // raw body bytes
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// Error types for distinguishing failure reasons.
var (
	// ErrEmptyBody indicates the server answered without any content.
	ErrEmptyBody = errors.New("empty response body")
	// ErrRetriesExhausted wraps the last error after every attempt failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrUnknownImage indicates image data whose type could not be determined.
	ErrUnknownImage = errors.New("unrecognised image data")
)

// StatusError reports a non-200 HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
