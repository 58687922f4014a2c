package medal

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// AudiencesURL is the site served by Audiences.
const AudiencesURL = "https://audiences.me/"

// Audiences reads the medal center, where every medal is its own form.
type Audiences struct{}

// Column order of the td.colfollow cells inside a medal form.
const (
	audColDescription = 1
	audColPrice       = 2
	audColStock       = 3
	audColBonus       = 5
	audColValidity    = 6
)

// FetchMedals implements Handler.
func (h *Audiences) FetchMedals(ctx context.Context, env Env, d site.Descriptor) ([]Record, error) {
	log := logger.ForSite(d.Key(), "medal.audiences")

	target := d.Resolve("/medal_center.php")
	content, err := env.Client.Page(ctx, d, target)
	if err != nil {
		return nil, fmt.Errorf("fetch medal center: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse medal center: %w", err)
	}

	forms := doc.Find(`form[action*="?"]`)
	if forms.Length() == 0 {
		log.Warn("no medals found", "url", target)
		return nil, nil
	}

	siteName := siteName(d)
	items := make([]item, 0, forms.Length())
	forms.Each(func(_ int, form *goquery.Selection) {
		items = append(items, audiencesItem(d, siteName, form))
	})

	records := collect(log, items)
	log.Info("medals fetched", "count", len(records))
	return records, nil
}

func audiencesItem(d site.Descriptor, siteName string, form *goquery.Selection) item {
	name := text(form.Find("h1").First())
	if name == "" {
		return bad("medal form without a name")
	}
	cols := form.Find("td.colfollow")
	col := func(i int) string { return ownText(cols.Eq(i)) }

	return ok(Normalize(Fields{
		FieldName:           name,
		FieldImageSmall:     imageURL(d, form),
		FieldDescription:    col(audColDescription),
		FieldPrice:          col(audColPrice),
		FieldStock:          col(audColStock),
		FieldBonusRate:      col(audColBonus),
		FieldValidity:       col(audColValidity),
		FieldPurchaseStatus: form.Find(`input[type="submit"]`).First().AttrOr("value", ""),
		FieldSite:           siteName,
	}))
}
