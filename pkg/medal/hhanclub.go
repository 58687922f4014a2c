package medal

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// HhanclubURL is the site served by Hhanclub.
const HhanclubURL = "https://hhanclub.top/"

const (
	hhanclubCards = `div[class*="medal-table"]:not([class*="bg-[#4F5879]"])`
	hhanclubNext  = `a[class*="bg-[#F29D38]"]:not([disabled])`
)

// Hhanclub reads the paginated card layout of the medal shop.
type Hhanclub struct{}

// FetchMedals implements Handler. Pages are followed through the highlighted
// "next" link until there is none or its page number does not increase.
func (h *Hhanclub) FetchMedals(ctx context.Context, env Env, d site.Descriptor) ([]Record, error) {
	log := logger.ForSite(d.Key(), "medal.hhanclub")
	siteName := siteName(d)

	return walkPages(ctx, env, d, log, "/medal.php", func(doc *goquery.Document) ([]item, *goquery.Selection) {
		cards := doc.Find(hhanclubCards)
		items := make([]item, 0, cards.Length())
		cards.Each(func(_ int, card *goquery.Selection) {
			items = append(items, hhanclubItem(d, siteName, card))
		})
		return items, doc.Find(hhanclubNext).First()
	})
}

func hhanclubItem(d site.Descriptor, siteName string, card *goquery.Selection) item {
	f := Fields{
		FieldSite:        siteName,
		FieldImageSmall:  imageURL(d, card),
		FieldName:        ownText(card.Find(`div[class*="text-[18px]"]`).First()),
		FieldDescription: ownText(card.Find(`div[class*="text-[#9B9B9B]"]`).First()),
	}
	if f[FieldName] == "" {
		return bad("medal card without a name")
	}

	card.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		t := ownText(div)
		switch {
		case t == "":
		case f[FieldPrice] == "" && strings.Contains(t, ","):
			f[FieldPrice] = t
		case f[FieldBonusRate] == "" && strings.Contains(t, "%"):
			f[FieldBonusRate] = t
		case f[FieldValidity] == "" && (strings.Contains(t, "永久有效") || strings.Contains(t, "天")):
			f[FieldValidity] = t
		case f[FieldStock] == "" && (t == "无限" || isDigits(t)):
			f[FieldStock] = t
		}
		return true
	})

	buttons := card.Find(`input[type="button"]`)
	f[FieldPurchaseStatus] = buttons.Eq(0).AttrOr("value", "")
	f[FieldGiftStatus] = buttons.Eq(1).AttrOr("value", "")

	return ok(Normalize(f))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
