package medal

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// QingwaURL is the site served by Qingwa.
const QingwaURL = "https://new.qingwa.pro/"

// Qingwa reads medals grouped by type, each with a key/value details table.
type Qingwa struct{}

// FetchMedals implements Handler.
func (h *Qingwa) FetchMedals(ctx context.Context, env Env, d site.Descriptor) ([]Record, error) {
	log := logger.ForSite(d.Key(), "medal.qingwa")

	target := d.Resolve("/medal.php")
	content, err := env.Client.Page(ctx, d, target)
	if err != nil {
		return nil, fmt.Errorf("fetch medal page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse medal page: %w", err)
	}

	siteName := siteName(d)
	var items []item
	doc.Find("div.medal-type-header").Each(func(_ int, header *goquery.Selection) {
		log.Debug("medal group", "type", text(header.Find("span.centered-text")))
		container := header.NextAllFiltered("div.medal-type-container").First()
		container.Find("div.medal-item").Each(func(_ int, m *goquery.Selection) {
			items = append(items, qingwaItem(d, siteName, m))
		})
	})
	if len(items) == 0 {
		log.Warn("no medals found", "url", target)
		return nil, nil
	}

	records := collect(log, items)
	log.Info("medals fetched", "count", len(records))
	return records, nil
}

func qingwaItem(d site.Descriptor, siteName string, m *goquery.Selection) item {
	info := m.Find("div.medal-info").First()
	if info.Length() == 0 {
		return bad("medal without info block")
	}

	f := Fields{
		FieldSite:        siteName,
		FieldName:        ownText(info.Find("h2").First()),
		FieldDescription: ownText(info.Find(`p[style*="display: flex"]`).First()),
		FieldValidity:    ownText(info.Find("p:not([style])").First()),
	}
	if img := imageURL(d, info.Find("h2").First()); img != "" {
		f[FieldImageSmall] = img
	} else if src, found := m.Find("img.preview").First().Attr("src"); found {
		f[FieldImageSmall] = d.Resolve(src)
	}

	info.Find("table.medal-details tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() != 2 {
			return
		}
		key, value := text(cells.Eq(0)), text(cells.Eq(1))
		switch {
		case strings.Contains(key, "加成有效期"):
			if f[FieldValidity] == "" {
				f[FieldValidity] = value
			}
		case strings.Contains(key, "加成"):
			f[FieldBonusRate] = value
		case strings.Contains(key, "价格"):
			f[FieldPrice] = value
		case strings.Contains(key, "库存"):
			f[FieldStock] = value
		}
	})
	f[FieldPurchaseStatus] = info.Find(`input[type="button"]`).First().AttrOr("value", "")

	if f[FieldName] == "" {
		return bad("medal without a name")
	}
	return ok(Normalize(f))
}
