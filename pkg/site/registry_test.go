package site

import (
	"strings"
	"testing"
)

type namedHandler struct{ name string }

func entry(name, siteURL string) Entry[*namedHandler] {
	return Entry[*namedHandler]{
		Name:    name,
		SiteURL: siteURL,
		New:     func() *namedHandler { return &namedHandler{name: name} },
	}
}

func newTestRegistry() *Registry[*namedHandler] {
	fallback := entry("default", "")
	fallback.Match = func(string) bool { return true }
	return NewRegistry(fallback)
}

func TestRegistry_MatchIsReflexive(t *testing.T) {
	r := newTestRegistry()
	r.Register(entry("tjupt", "https://www.tjupt.org/"))
	r.Register(entry("zhuque", "https://zhuque.in/"))

	for _, e := range r.Entries() {
		ok, err := e.Matches(e.SiteURL)
		if err != nil || !ok {
			t.Errorf("entry %s does not match its own site URL (err=%v)", e.Name, err)
		}
		if _, name := r.Resolve(e.SiteURL); name != e.Name {
			t.Errorf("Resolve(%q) = %s, want %s", e.SiteURL, name, e.Name)
		}
	}
}

func TestRegistry_FirstRegisteredWins(t *testing.T) {
	r := newTestRegistry()
	r.Register(entry("first", "https://example.org/"))
	r.Register(entry("second", "https://www.example.org"))

	h, name := r.Resolve("https://example.org/signup.php")
	if name != "first" || h.name != "first" {
		t.Errorf("expected first registered handler, got %s", name)
	}
}

func TestRegistry_PanickingMatchSkipped(t *testing.T) {
	r := newTestRegistry()
	broken := entry("broken", "")
	broken.Match = func(url string) bool {
		if strings.Contains(url, "example") {
			panic("bad pattern")
		}
		return false
	}
	r.Register(broken)
	r.Register(entry("good", "https://example.org"))

	_, name := r.Resolve("https://example.org/")
	if name != "good" {
		t.Errorf("expected panicking handler to be skipped, got %s", name)
	}
}

func TestRegistry_FallbackOnNoMatch(t *testing.T) {
	r := newTestRegistry()
	r.Register(entry("tjupt", "https://www.tjupt.org/"))

	h, name := r.Resolve("https://unknown.example/")
	if name != "default" || h.name != "default" {
		t.Errorf("expected fallback, got %s", name)
	}
}

func TestRegistry_FallbackMatchNeverConsulted(t *testing.T) {
	called := false
	fallback := entry("default", "")
	fallback.Match = func(string) bool {
		called = true
		return false
	}
	r := NewRegistry(fallback)

	if _, name := r.Resolve("https://anything.example/"); name != "default" {
		t.Errorf("expected fallback, got %s", name)
	}
	if called {
		t.Error("fallback match should not be consulted")
	}
}

func TestRegistry_NewInstancePerResolve(t *testing.T) {
	r := newTestRegistry()
	r.Register(entry("tjupt", "https://www.tjupt.org/"))

	a, _ := r.Resolve("https://www.tjupt.org/")
	b, _ := r.Resolve("https://www.tjupt.org/")
	if a == b {
		t.Error("expected a fresh handler per resolve")
	}
}
