package medal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/ptsites/pkg/site"
)

// Env carries what handlers need besides the site itself.
type Env struct {
	Client site.Client
	// Now is the clock used for sale windows. Nil means time.Now.
	Now func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Handler scrapes the medal shop of one kind of site.
type Handler interface {
	FetchMedals(ctx context.Context, env Env, d site.Descriptor) ([]Record, error)
}

// item is the outcome of parsing one medal.
type item struct {
	record Record
	err    error
}

func ok(r Record) item { return item{record: r} }

func bad(format string, args ...any) item {
	return item{err: fmt.Errorf(format, args...)}
}

// collect keeps the parsed records and logs the rest.
func collect(log *slog.Logger, items []item) []Record {
	out := make([]Record, 0, len(items))
	for i, it := range items {
		if it.err != nil {
			log.Warn("skipping medal", "index", i, "error", it.err)
			continue
		}
		out = append(out, it.record)
	}
	return out
}

// FetchMedals resolves the handler for d from the default registry and runs
// it.
func FetchMedals(ctx context.Context, env Env, d site.Descriptor) ([]Record, string, error) {
	h, name := DefaultRegistry().Resolve(d.URL)
	records, err := h.FetchMedals(ctx, env, d)
	return records, name, err
}

// Purchasable returns the records that can be bought or gifted.
func Purchasable(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Purchasable() {
			out = append(out, r)
		}
	}
	return out
}

// DefaultRegistry returns the built-in handlers. Sites without a dedicated
// handler are read from the standard NexusPHP medal table.
func DefaultRegistry() *site.Registry[Handler] {
	r := site.NewRegistry(site.Entry[Handler]{
		Name: "medal.nexusphp",
		New:  func() Handler { return &NexusPHP{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "medal.zmpt",
		SiteURL: ZmptURL,
		New:     func() Handler { return &Zmpt{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "medal.hhanclub",
		SiteURL: HhanclubURL,
		New:     func() Handler { return &Hhanclub{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "medal.audiences",
		SiteURL: AudiencesURL,
		New:     func() Handler { return &Audiences{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "medal.qingwa",
		SiteURL: QingwaURL,
		New:     func() Handler { return &Qingwa{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "medal.0ff",
		SiteURL: OffURL,
		New:     func() Handler { return &NexusPHP{Layout: offLayout, Component: "medal.0ff"} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "medal.ptzone",
		SiteURL: PtzoneURL,
		New: func() Handler {
			return &NexusPHP{Layout: offLayout, NumberedPages: true, Component: "medal.ptzone"}
		},
	})
	r.Register(site.Entry[Handler]{
		Name:    "medal.ptvicomo",
		SiteURL: PtvicomoURL,
		New:     func() Handler { return &Ptvicomo{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "medal.ptsbao",
		SiteURL: PtsbaoURL,
		New:     func() Handler { return &Ptsbao{} },
	})
	return r
}

// text returns the trimmed text of the selection.
func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// ownText returns the trimmed text of the element's direct text nodes.
func ownText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text"
	}).Text())
}

// textNodes returns the trimmed, non-empty text nodes under s in document
// order.
func textNodes(s *goquery.Selection) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out = append(out, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return out
}

// firstText returns the first non-empty text under s.
func firstText(s *goquery.Selection) string {
	if t := textNodes(s); len(t) > 0 {
		return t[0]
	}
	return ""
}

// imageURL resolves the first img src under s against the site.
func imageURL(d site.Descriptor, s *goquery.Selection) string {
	src, found := s.Find("img").First().Attr("src")
	if !found || src == "" {
		return ""
	}
	return d.Resolve(src)
}
