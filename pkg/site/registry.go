package site

import (
	"fmt"

	"github.com/jmylchreest/ptsites/internal/logger"
)

// Entry registers one handler implementation.
type Entry[H any] struct {
	// Name identifies the handler in logs and results.
	Name string
	// SiteURL is the canonical URL the handler serves.
	SiteURL string
	// Match overrides URL matching. When nil, URLEqual against SiteURL is used.
	Match func(url string) bool
	// New creates a fresh handler for one invocation.
	New func() H
}

// Matches reports whether the entry accepts url. A panicking Match is
// recovered and reported as an error.
func (e Entry[H]) Matches(url string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("handler %s match panicked: %v", e.Name, r)
		}
	}()
	if e.Match != nil {
		return e.Match(url), nil
	}
	return URLEqual(url, e.SiteURL), nil
}

// Registry resolves site URLs to handlers. Entries are consulted in
// registration order and the first match wins; when nothing matches the
// fallback is used. The fallback's own Match is never consulted.
type Registry[H any] struct {
	entries  []Entry[H]
	fallback Entry[H]
}

// NewRegistry creates a registry that resolves to fallback on no match.
func NewRegistry[H any](fallback Entry[H]) *Registry[H] {
	return &Registry[H]{fallback: fallback}
}

// Register appends an entry.
func (r *Registry[H]) Register(e Entry[H]) {
	r.entries = append(r.entries, e)
}

// Entries returns the registered entries in order, excluding the fallback.
func (r *Registry[H]) Entries() []Entry[H] {
	out := make([]Entry[H], len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup returns the entry that services url.
func (r *Registry[H]) Lookup(url string) Entry[H] {
	for _, e := range r.entries {
		ok, err := e.Matches(url)
		if err != nil {
			logger.Warn("skipping handler", "handler", e.Name, "url", url, "error", err)
			continue
		}
		if ok {
			return e
		}
	}
	return r.fallback
}

// Resolve returns a new handler for url and the name it was registered under.
func (r *Registry[H]) Resolve(url string) (H, string) {
	e := r.Lookup(url)
	return e.New(), e.Name
}
