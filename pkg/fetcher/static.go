package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/ptsites/internal/logger"
)

// StaticConfig holds configuration for the static fetcher.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// DefaultStaticConfig returns sensible defaults.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent: DefaultUserAgent,
		Timeout:   20 * time.Second,
	}
}

// DefaultUserAgent is sent when neither the site nor the caller supplies one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// StaticFetcher uses Colly for plain HTTP requests.
// It implements the Fetcher and Submitter interfaces.
type StaticFetcher struct {
	config StaticConfig
}

// NewStatic creates a new static fetcher.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultStaticConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultStaticConfig().Timeout
	}
	return &StaticFetcher{config: cfg}
}

// Fetch performs a GET request and decodes the body.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	return f.do(ctx, "GET", targetURL, nil, opts)
}

// Submit posts form as application/x-www-form-urlencoded.
func (f *StaticFetcher) Submit(ctx context.Context, targetURL string, form url.Values, opts Options) (Content, error) {
	return f.do(ctx, "POST", targetURL, form, opts)
}

func (f *StaticFetcher) do(ctx context.Context, method, targetURL string, form url.Values, opts Options) (Content, error) {
	logger.Debug("static fetch starting", "method", method, "url", targetURL)

	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	// Create a new collector for each request
	userAgent := coalesce(opts.UserAgent, f.config.UserAgent)
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	c.SetRequestTimeout(timeout)

	if opts.Proxy != "" {
		if err := c.SetProxy(opts.Proxy); err != nil {
			return result, fmt.Errorf("set proxy: %w", err)
		}
	}

	c.OnRequest(func(r *colly.Request) {
		if opts.Cookie != "" {
			r.Headers.Set("Cookie", opts.Cookie)
		}
	})

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.Body = r.Body
		if r.Request != nil && r.Request.URL != nil {
			result.URL = r.Request.URL.String()
		}
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"content_type", result.ContentType,
			"body_size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.StatusCode = r.StatusCode
			fetchErr = &StatusError{URL: targetURL, StatusCode: r.StatusCode}
			return
		}
		fetchErr = fmt.Errorf("fetch error: %w", err)
	})

	var err error
	if method == "POST" {
		err = c.Post(targetURL, flattenForm(form))
	} else {
		err = c.Visit(targetURL)
	}
	if fetchErr != nil {
		logger.Debug("static fetch failed", "url", targetURL, "error", fetchErr)
		return result, fetchErr
	}
	if err != nil {
		logger.Debug("static fetch visit failed", "url", targetURL, "error", err)
		return result, fmt.Errorf("failed to visit URL: %w", err)
	}

	if result.StatusCode != 200 {
		return result, &StatusError{URL: targetURL, StatusCode: result.StatusCode}
	}

	result.HTML = DecodeBody(result.Body, result.ContentType)
	logger.Debug("static fetch complete", "url", targetURL, "final_url", result.URL)
	return result, nil
}

// flattenForm keeps the first value of each key; colly posts a flat map.
func flattenForm(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Close releases resources.
func (f *StaticFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string {
	return "static"
}

var (
	_ Fetcher   = (*StaticFetcher)(nil)
	_ Submitter = (*StaticFetcher)(nil)
)
