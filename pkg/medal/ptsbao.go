package medal

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// PtsbaoURL is the site served by Ptsbao.
const PtsbaoURL = "https://ptsbao.club/"

var ptsbaoSaleTime = regexp.MustCompile(`可购买时间[:：]([^<)）]+)`)

// Ptsbao reads mymedal.php, where every medal is its own form. The site
// shows no purchase button, so the status is derived from the sale window
// and the stock.
type Ptsbao struct{}

// FetchMedals implements Handler. The page is only served to a logged-in
// account; without a cookie nothing is fetched.
func (h *Ptsbao) FetchMedals(ctx context.Context, env Env, d site.Descriptor) ([]Record, error) {
	log := logger.ForSite(d.Key(), "medal.ptsbao")
	if d.Cookie == "" {
		log.Warn("no cookie configured, skipping medal page")
		return nil, nil
	}
	siteName, now := siteName(d), env.now()

	return walkPages(ctx, env, d, log, "/mymedal.php", func(doc *goquery.Document) ([]item, *goquery.Selection) {
		forms := doc.Find(`table[align="center"][width="90%"] form`)
		if forms.Length() == 0 {
			forms = doc.Find(`form[id*="medalForm"]`)
		}
		items := make([]item, 0, forms.Length())
		forms.Each(func(_ int, form *goquery.Selection) {
			items = append(items, ptsbaoItem(d, siteName, form, now))
		})
		return items, doc.Find(`a:contains("下一页")`).First()
	})
}

func ptsbaoItem(d site.Descriptor, siteName string, form *goquery.Selection, now time.Time) item {
	tds := form.Find("td")
	if tds.Length() < 6 {
		return bad("medal form has %d cells, want 6", tds.Length())
	}

	info := tds.Eq(1)
	name := info.Find("b").First()
	f := Fields{
		FieldSite:       siteName,
		FieldImageSmall: ptsbaoImage(d, tds.Eq(0)),
		FieldName:       text(name),
		FieldStock:      firstText(tds.Eq(2)),
		FieldPrice:      firstText(tds.Eq(4)),
	}
	if f[FieldName] == "" {
		return bad("medal form without a name")
	}
	if f[FieldPrice] == "" {
		return bad("medal %q without a price", f[FieldName])
	}

	desc := followingText(name)
	if before, _, found := strings.Cut(desc, "可购买时间"); found {
		desc = strings.TrimRight(before, "(（ ")
	}
	f[FieldDescription] = desc
	if markup, err := goquery.OuterHtml(info); err == nil {
		if m := ptsbaoSaleTime.FindStringSubmatch(markup); m != nil && strings.Contains(m[1], "~") {
			f[FieldSaleBeginTime], f[FieldSaleEndTime] = SplitRange(m[1])
		}
	}

	r := Normalize(f)
	r.PurchaseStatus = ptsbaoStatus(r, now)
	return ok(r)
}

// ptsbaoStatus derives the purchase state. Outside a known window the
// status stays unknown.
func ptsbaoStatus(r Record, now time.Time) string {
	switch {
	case r.SaleEnded(now):
		return StatusWindowClosed
	case !r.OnSale(now):
		return ""
	case r.Stock == "0":
		return StatusOutOfStock
	case r.Stock != "":
		return StatusBuy
	}
	return ""
}

// ptsbaoImage reads the lazily loaded medal image, falling back to the
// background image of the placeholder.
func ptsbaoImage(d site.Descriptor, cell *goquery.Selection) string {
	box := cell.Find("span.medalcontainer").First()
	if src := box.Find("a.medalimg").AttrOr("data-original", ""); src != "" {
		return d.Resolve(src)
	}
	style := box.Find("img").AttrOr("style", "")
	if _, after, found := strings.Cut(style, "background-image: url('"); found {
		if src, _, found := strings.Cut(after, "'"); found && src != "" {
			return d.Resolve(src)
		}
	}
	return ""
}

// followingText returns the first text node after the element, trimmed.
func followingText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	for n := s.Nodes[0].NextSibling; n != nil; n = n.NextSibling {
		if n.Type == html.TextNode {
			return strings.TrimSpace(n.Data)
		}
	}
	return ""
}
