package site

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/jmylchreest/ptsites/pkg/fetcher"
)

// Client is what handlers use to talk to a site.
type Client interface {
	// Page fetches a page, rendering it when the site asks for it, and
	// retries according to the client's policy.
	Page(ctx context.Context, d Descriptor, target string) (fetcher.Content, error)
	// Download fetches raw bytes (images, JSON) once, without rendering.
	Download(ctx context.Context, d Descriptor, target string) (fetcher.Content, error)
	// Submit posts a form once.
	Submit(ctx context.Context, d Descriptor, target string, form url.Values) (fetcher.Content, error)
}

// TransportConfig configures a Transport.
type TransportConfig struct {
	// ProxyURL is used for sites whose descriptor sets Proxy.
	ProxyURL string
	Timeout  time.Duration
	// Attempts and Interval set the page retry policy. Zero Attempts means
	// the fetcher defaults.
	Attempts int
	Interval time.Duration
	// BrowserTimeout bounds headless rendering.
	BrowserTimeout time.Duration
}

// Transport is the Client backed by the static and dynamic fetchers.
type Transport struct {
	config TransportConfig
	static *fetcher.StaticFetcher

	dynamicOnce sync.Once
	dynamic     fetcher.Fetcher
}

// NewTransport creates a transport. The headless browser is only started
// when a site with Render set is first fetched.
func NewTransport(cfg TransportConfig) *Transport {
	return &Transport{
		config: cfg,
		static: fetcher.NewStatic(fetcher.StaticConfig{Timeout: cfg.Timeout}),
	}
}

// WithDynamic replaces the rendering fetcher.
func (t *Transport) WithDynamic(f fetcher.Fetcher) *Transport {
	t.dynamicOnce.Do(func() {})
	t.dynamic = f
	return t
}

func (t *Transport) renderer() fetcher.Fetcher {
	t.dynamicOnce.Do(func() {
		t.dynamic = fetcher.NewDynamic(fetcher.DynamicConfig{
			Timeout: t.config.BrowserTimeout,
		})
	})
	return t.dynamic
}

// Options builds per-request fetch options for d.
func (t *Transport) Options(d Descriptor) fetcher.Options {
	opts := fetcher.Options{
		UserAgent: d.UserAgent,
		Cookie:    d.Cookie,
		Timeout:   t.config.Timeout,
	}
	if d.Proxy {
		opts.Proxy = t.config.ProxyURL
	}
	return opts
}

// Page implements Client.
func (t *Transport) Page(ctx context.Context, d Descriptor, target string) (fetcher.Content, error) {
	var next fetcher.Fetcher = t.static
	if d.Render {
		next = t.renderer()
	}
	r := fetcher.NewRetry(next)
	if t.config.Attempts > 0 {
		r.Attempts = t.config.Attempts
		r.Interval = t.config.Interval
	}
	return r.Fetch(ctx, target, t.Options(d))
}

// Download implements Client.
func (t *Transport) Download(ctx context.Context, d Descriptor, target string) (fetcher.Content, error) {
	return t.static.Fetch(ctx, target, t.Options(d))
}

// Submit implements Client.
func (t *Transport) Submit(ctx context.Context, d Descriptor, target string, form url.Values) (fetcher.Content, error) {
	return t.static.Submit(ctx, target, form, t.Options(d))
}

// Close shuts down the headless browser if it was started.
func (t *Transport) Close() error {
	if t.dynamic != nil {
		if err := t.dynamic.Close(); err != nil {
			return err
		}
	}
	return t.static.Close()
}

var _ Client = (*Transport)(nil)
