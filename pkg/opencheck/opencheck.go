// Package opencheck checks tracker sign-up pages to tell whether a site is
// currently accepting registrations.
package opencheck

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// Status is the registration state of a site.
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusUnknown Status = "unknown"
	StatusError   Status = "error"
)

// Settled reports whether the status is a definite answer.
func (s Status) Settled() bool {
	return s == StatusOpen || s == StatusClosed
}

// Result is the outcome of one check.
type Result struct {
	Status    Status `json:"status" yaml:"status"`
	Message   string `json:"message" yaml:"message"`
	SignupURL string `json:"signup_url" yaml:"signup_url"`
}

// Env carries what handlers need besides the site itself.
type Env struct {
	Client site.Client
}

// Handler checks one kind of site.
type Handler interface {
	// SignupURL is the page the check reads.
	SignupURL(d site.Descriptor) string
	// Check returns the status and a message for operators. Transport
	// failures are returned as errors.
	Check(ctx context.Context, env Env, d site.Descriptor) (Status, string, error)
}

// Run checks d with h and never fails: errors become StatusError results.
func Run(ctx context.Context, env Env, h Handler, d site.Descriptor) Result {
	res := Result{SignupURL: h.SignupURL(d)}
	status, msg, err := h.Check(ctx, env, d)
	if err != nil {
		logger.Error("registration check failed", "site", d.Key(), "url", res.SignupURL, "error", err)
		res.Status = StatusError
		res.Message = "检查失败: " + err.Error()
		return res
	}
	res.Status, res.Message = status, msg
	return res
}

// Check resolves the handler for d from the default registry and runs it.
func Check(ctx context.Context, env Env, d site.Descriptor) (Result, string) {
	h, name := DefaultRegistry().Resolve(d.URL)
	return Run(ctx, env, h, d), name
}

// signupPath joins path onto the site URL the way every handler builds its
// sign-up address.
func signupPath(d site.Descriptor, path string) string {
	return strings.TrimRight(d.URL, "/") + path
}

// fetch reads a sign-up page anonymously and returns its body and final URL.
func fetch(ctx context.Context, env Env, d site.Descriptor, target string) (string, string, error) {
	anon := d
	anon.Cookie = ""
	content, err := env.Client.Page(ctx, anon, target)
	if err != nil {
		return "", "", fmt.Errorf("无法访问页面: %w", err)
	}
	return content.HTML, content.URL, nil
}

// DefaultRegistry returns the built-in handlers. Sites without a dedicated
// handler get the keyword heuristics of Default.
func DefaultRegistry() *site.Registry[Handler] {
	r := site.NewRegistry(site.Entry[Handler]{
		Name: "opencheck.default",
		New:  func() Handler { return &Default{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "opencheck.byr",
		SiteURL: ByrURL,
		New:     func() Handler { return &Byr{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "opencheck.monikadesign",
		SiteURL: MonikaDesignURL,
		New:     func() Handler { return &MonikaDesign{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "opencheck.skyeysnow",
		SiteURL: SkyeySnowURL,
		New:     func() Handler { return &SkyeySnow{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "opencheck.tjupt",
		SiteURL: TjuptURL,
		New:     func() Handler { return &Tjupt{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "opencheck.zhuque",
		SiteURL: ZhuqueURL,
		New:     func() Handler { return &Zhuque{} },
	})
	return r
}
