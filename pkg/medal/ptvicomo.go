package medal

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// PtvicomoURL is the site served by Ptvicomo.
const PtvicomoURL = "https://ptvicomo.net/"

// Ptvicomo reads the medal cards of medal.php, whose details are labelled
// lines inside div.medalText.
type Ptvicomo struct{}

// ptvicomoLabels maps detail labels to fields. The first label found in a
// line wins.
var ptvicomoLabels = []struct {
	label string
	field string
}{
	{"开售时间", FieldSaleBeginTime},
	{"停售时间", FieldSaleEndTime},
	{"有效期", FieldValidity},
	{"象草加成", FieldBonusRate},
	{"价格", FieldPrice},
	{"库存", FieldStock},
}

// FetchMedals implements Handler.
func (h *Ptvicomo) FetchMedals(ctx context.Context, env Env, d site.Descriptor) ([]Record, error) {
	log := logger.ForSite(d.Key(), "medal.ptvicomo")
	siteName := siteName(d)

	return walkPages(ctx, env, d, log, "/medal.php", func(doc *goquery.Document) ([]item, *goquery.Selection) {
		var items []item
		doc.Find("div.medalItem").Each(func(_ int, m *goquery.Selection) {
			items = append(items, ptvicomoItem(d, siteName, m))
		})
		return items, nexusNextLink(doc)
	})
}

func ptvicomoItem(d site.Descriptor, siteName string, m *goquery.Selection) item {
	f := Fields{
		FieldSite: siteName,
		FieldName: ownText(m.Find(`div[style*="font-size: 14px"][style*="font-weight: 700"]`).First()),
	}
	if f[FieldName] == "" {
		return bad("medal card without a name")
	}
	if src := m.Find("img.medalPic").First().AttrOr("src", ""); src != "" {
		f[FieldImageSmall] = d.Resolve(src)
	}
	f[FieldPurchaseStatus] = m.Find(`input[type="button"]`).First().AttrOr("value", "")

	details := m.Find("div.medalText").First()
	if desc := ownFirstText(details); ptvicomoLabel(desc) < 0 {
		f[FieldDescription] = desc
	}
	for _, line := range textNodes(details) {
		if i := ptvicomoLabel(line); i >= 0 {
			l := ptvicomoLabels[i]
			f[l.field] = labelValue(line, l.label)
		}
	}
	return ok(Normalize(f))
}

func ptvicomoLabel(line string) int {
	for i, l := range ptvicomoLabels {
		if strings.Contains(line, l.label) {
			return i
		}
	}
	return -1
}

// ownFirstText returns the first non-empty direct text node of s.
func ownFirstText(s *goquery.Selection) string {
	var out string
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if goquery.NodeName(c) == "#text" {
			out = strings.TrimSpace(c.Text())
		}
		return out == ""
	})
	return out
}

// labelValue strips label and a following colon from line.
func labelValue(line, label string) string {
	v := strings.Replace(line, label, "", 1)
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(v), ":："))
}
