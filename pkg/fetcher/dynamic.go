package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/ptsites/internal/logger"
)

// DynamicConfig holds configuration for the headless-browser fetcher.
type DynamicConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// DynamicFetcher uses chromedp for pages that need client-side script to
// produce their final markup.
type DynamicFetcher struct {
	config    DynamicConfig
	allocCtx  context.Context
	cancelCtx context.CancelFunc
}

// NewDynamic creates a dynamic fetcher with a shared, unproxied browser
// allocator. Requests that set Options.Proxy get their own allocator.
func NewDynamic(cfg DynamicConfig) *DynamicFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	allocCtx, cancel := newAllocator(cfg.UserAgent, "")
	logger.Debug("dynamic fetcher browser allocator created",
		"user_agent", cfg.UserAgent,
		"timeout", cfg.Timeout)

	return &DynamicFetcher{
		config:    cfg,
		allocCtx:  allocCtx,
		cancelCtx: cancel,
	}
}

func newAllocator(userAgent, proxy string) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}
	return chromedp.NewExecAllocator(context.Background(), opts...)
}

// Fetch renders the page in a fresh tab and returns the resulting DOM.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	logger.Debug("dynamic fetch starting", "url", targetURL)

	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	allocCtx, cancelAlloc := f.allocator(opts)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	// Stop the browser when the caller gives up.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	headers := network.Headers{}
	if opts.Cookie != "" {
		headers["Cookie"] = opts.Cookie
	}

	var html, location string
	actions := []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
	}
	if opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(opts.UserAgent))
	}
	actions = append(actions,
		chromedp.Navigate(targetURL),
		chromedp.WaitVisible("body"),
		chromedp.OuterHTML("html", &html),
		chromedp.Location(&location),
	)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		logger.Debug("dynamic fetch browser automation failed", "url", targetURL, "error", err)
		return result, fmt.Errorf("browser automation failed: %w", err)
	}

	result.HTML = html
	result.Body = []byte(html)
	result.StatusCode = 200 // chromedp doesn't easily expose status codes
	result.ContentType = "text/html; charset=utf-8"
	if location != "" {
		result.URL = location
	}

	logger.Debug("dynamic fetch complete", "url", targetURL, "html_size", len(html))
	return result, nil
}

// allocator returns the shared browser allocator, or a dedicated one started
// with the request's proxy. The returned cancel func is always safe to call.
func (f *DynamicFetcher) allocator(opts Options) (context.Context, context.CancelFunc) {
	if opts.Proxy == "" {
		return f.allocCtx, func() {}
	}
	logger.Debug("dynamic fetch through proxy", "proxy", opts.Proxy)
	return newAllocator(coalesce(opts.UserAgent, f.config.UserAgent), opts.Proxy)
}

// Close shuts down the browser allocator.
func (f *DynamicFetcher) Close() error {
	if f.cancelCtx != nil {
		f.cancelCtx()
	}
	return nil
}

// Type returns the fetcher type.
func (f *DynamicFetcher) Type() string {
	return "dynamic"
}

var _ Fetcher = (*DynamicFetcher)(nil)
