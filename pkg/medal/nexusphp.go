package medal

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// Sites served by NexusPHP with a fixed column layout.
const (
	OffURL    = "https://pt.0ff.cc/"
	PtzoneURL = "https://ptzone.xyz/"
)

// NexusPHP reads the stock medal.php table and follows its pager. Without a
// Layout, columns are located by their header text, so reordered or missing
// columns are tolerated.
type NexusPHP struct {
	// Layout fixes the column of every cell of the rows inside
	// table.main table[border=1]; the first row is the header.
	Layout []column
	// NumberedPages follows the link after the current page marker when the
	// pager has no 下一页 link.
	NumberedPages bool
	// Component names the handler in logs.
	Component string
}

type column int

const (
	colNone column = iota
	colImage
	colName
	colSaleTime
	colValidity
	colBonus
	colPrice
	colStock
	colBuy
	colGift
)

// Header keywords in match order. More specific words come first so that
// 可购买时间 is not taken for the 购买 column.
var headerKeywords = []struct {
	word string
	col  column
}{
	{"图片", colImage},
	{"时间", colSaleTime},
	{"有效期", colValidity},
	{"加成", colBonus},
	{"手续费", colNone},
	{"价格", colPrice},
	{"库存", colStock},
	{"描述", colName},
	{"名称", colName},
	{"购买", colBuy},
	{"赠送", colGift},
}

func headerColumn(h string) column {
	for _, k := range headerKeywords {
		if strings.Contains(h, k.word) {
			return k.col
		}
	}
	return colNone
}

// offLayout is the fixed table of 0ff and ptzone: a leading id cell, then
// the stock columns.
var offLayout = []column{
	colNone, colImage, colName, colSaleTime, colValidity,
	colBonus, colPrice, colStock, colBuy, colGift,
}

// FetchMedals implements Handler.
func (h *NexusPHP) FetchMedals(ctx context.Context, env Env, d site.Descriptor) ([]Record, error) {
	component := h.Component
	if component == "" {
		component = "medal.nexusphp"
	}
	log := logger.ForSite(d.Key(), component)
	siteName := siteName(d)

	return walkPages(ctx, env, d, log, "/medal.php", func(doc *goquery.Document) ([]item, *goquery.Selection) {
		rows, columns := h.medalRows(doc)
		items := make([]item, 0, len(rows))
		for _, cells := range rows {
			items = append(items, nexusItem(d, siteName, cells, columns))
		}
		return items, h.nextLink(doc)
	})
}

// medalRows returns the cells of every medal row with the column layout.
func (h *NexusPHP) medalRows(doc *goquery.Document) ([]*goquery.Selection, []column) {
	var rows []*goquery.Selection
	if len(h.Layout) > 0 {
		table := doc.Find(`table.main table[border*="1"]`).First()
		tableRows(table).Each(func(i int, row *goquery.Selection) {
			if cells := row.ChildrenFiltered("td"); i > 0 && cells.Length() > 0 {
				rows = append(rows, cells)
			}
		})
		return rows, h.Layout
	}

	header, columns := findMedalHeader(doc)
	if header == nil {
		return nil, nil
	}
	after := false
	tableRows(header.Closest("table")).Each(func(_ int, row *goquery.Selection) {
		if row.IsSelection(header) {
			after = true
			return
		}
		if cells := row.ChildrenFiltered("td"); after && cells.Length() > 0 {
			rows = append(rows, cells)
		}
	})
	return rows, columns
}

func (h *NexusPHP) nextLink(doc *goquery.Document) *goquery.Selection {
	next := nexusNextLink(doc)
	if next.Length() == 0 && h.NumberedPages {
		next = doc.Find("p.nexus-pagination").ChildrenFiltered("font").First().NextAllFiltered("a").First()
	}
	return next
}

func tableRows(table *goquery.Selection) *goquery.Selection {
	return table.ChildrenFiltered("thead, tbody").ChildrenFiltered("tr")
}

// findMedalHeader returns the first table row that names a price column and
// a name column, with the column each cell maps to.
func findMedalHeader(doc *goquery.Document) (*goquery.Selection, []column) {
	var (
		header  *goquery.Selection
		columns []column
	)
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		// Layout rows wrap the whole table.
		if row.Find("table").Length() > 0 {
			return true
		}
		cells := row.ChildrenFiltered("td, th")
		cols := make([]column, cells.Length())
		var hasPrice, hasName bool
		cells.Each(func(i int, c *goquery.Selection) {
			cols[i] = headerColumn(text(c))
			hasPrice = hasPrice || cols[i] == colPrice
			hasName = hasName || cols[i] == colName
		})
		if hasPrice && hasName {
			header, columns = row, cols
			return false
		}
		return true
	})
	return header, columns
}

func nexusItem(d site.Descriptor, siteName string, cells *goquery.Selection, columns []column) item {
	if cells.Length() < len(columns) {
		return bad("row has %d cells, header has %d", cells.Length(), len(columns))
	}

	f := Fields{FieldSite: siteName}
	for i, col := range columns {
		cell := cells.Eq(i)
		switch col {
		case colImage:
			f[FieldImageSmall] = imageURL(d, cell)
		case colName:
			if h1 := cell.Find("h1").First(); h1.Length() > 0 {
				f[FieldName] = text(h1)
				f[FieldDescription] = ownText(cell)
			} else {
				f[FieldName] = text(cell)
			}
		case colSaleTime:
			saleTimes(f, cell)
		case colValidity:
			f[FieldValidity] = text(cell)
		case colBonus:
			f[FieldBonusRate] = text(cell)
		case colPrice:
			f[FieldPrice] = text(cell)
		case colStock:
			f[FieldStock] = text(cell)
		case colBuy:
			f[FieldPurchaseStatus] = controlLabel(cell)
		case colGift:
			f[FieldGiftStatus] = controlLabel(cell)
		}
	}
	if f[FieldName] == "" {
		return bad("medal row without a name")
	}
	return ok(Normalize(f))
}

// saleTimes fills the sale bounds from a cell holding either one
// "begin ~ end" text or the bounds as separate lines.
func saleTimes(f Fields, cell *goquery.Selection) {
	var parts []string
	for _, t := range textNodes(cell) {
		if t = strings.TrimSpace(strings.Trim(t, "~")); t != "" {
			parts = append(parts, t)
		}
	}
	switch {
	case len(parts) == 0:
	case len(parts) == 1 || strings.Contains(parts[0], Unlimited):
		saleWindow(f, text(cell))
	default:
		f[FieldSaleBeginTime], f[FieldSaleEndTime] = parts[0], parts[1]
	}
}

// saleWindow fills the sale bounds from "begin ~ end" or 不限.
func saleWindow(f Fields, s string) {
	if s == "" {
		return
	}
	if strings.Contains(s, Unlimited) {
		f[FieldSaleBeginTime] = Unlimited
		f[FieldSaleEndTime] = Unlimited
		return
	}
	f[FieldSaleBeginTime], f[FieldSaleEndTime] = SplitRange(s)
}

// controlLabel returns the value of a button in the cell, or its text.
func controlLabel(cell *goquery.Selection) string {
	if v, found := cell.Find("input").First().Attr("value"); found {
		return v
	}
	return text(cell)
}
