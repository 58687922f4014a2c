// Package site holds what every handler family shares: the site descriptor,
// URL equivalence, the ordered handler registry and the transport handlers
// use to reach a site.
package site

import (
	"net/url"
	"strings"
)

// Descriptor is the caller-owned description of one configured site.
// Handlers treat it as read-only.
type Descriptor struct {
	ID        string `mapstructure:"id" json:"id" yaml:"id"`
	Name      string `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	URL       string `mapstructure:"url" json:"url" yaml:"url" validate:"required,url"`
	Cookie    string `mapstructure:"cookie" json:"-" yaml:"-"`
	UserAgent string `mapstructure:"user_agent" json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	Proxy     bool   `mapstructure:"proxy" json:"proxy" yaml:"proxy"`
	Render    bool   `mapstructure:"render" json:"render" yaml:"render"`
	Public    bool   `mapstructure:"public" json:"public" yaml:"public"`
}

// Key identifies the descriptor in logs and stored results.
func (d Descriptor) Key() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Name
}

// Resolve turns ref into an absolute URL relative to the site's base URL.
// An unparseable ref is returned unchanged.
func (d Descriptor) Resolve(ref string) string {
	return ResolveURL(d.URL, ref)
}

// ResolveURL resolves ref against base the way a browser would.
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// URLEqual reports whether a and b point at the same site. Absolute URLs are
// reduced to their host (and port); a leading "www." and letter case are
// ignored. Empty input never matches.
func URLEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return siteKey(a) == siteKey(b)
}

func siteKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "http") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = u.Host
		}
	}
	s = strings.TrimSuffix(s, "/")
	return strings.TrimPrefix(s, "www.")
}
