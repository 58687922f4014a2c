package medal

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/ptsites/pkg/site"
)

// pageParser extracts the medals of one page and the link to the next page.
// A page without medals ends the walk.
type pageParser func(doc *goquery.Document) ([]item, *goquery.Selection)

// walkPages fetches path and then path?page=N for as long as the next link
// names a strictly greater page. Failing to fetch the first page is an
// error; a later failure keeps what was collected.
func walkPages(ctx context.Context, env Env, d site.Descriptor, log *slog.Logger, path string, parse pageParser) ([]Record, error) {
	var records []Record
	page := 0
	for {
		target := d.Resolve(path)
		if page > 0 {
			target = fmt.Sprintf("%s?page=%d", target, page)
		}
		log.Debug("fetching medal page", "page", page, "url", target)

		content, err := env.Client.Page(ctx, d, target)
		if err != nil {
			if page == 0 {
				return nil, fmt.Errorf("fetch medal page: %w", err)
			}
			log.Warn("medal page unavailable, stopping", "page", page, "error", err)
			break
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
		if err != nil {
			return records, fmt.Errorf("parse medal page %d: %w", page, err)
		}

		items, next := parse(doc)
		if len(items) == 0 {
			log.Warn("no medals on page", "page", page, "url", target)
			break
		}
		records = append(records, collect(log, items)...)

		n, found := nextPage(next)
		if !found {
			break
		}
		if n <= page {
			log.Debug("next page does not advance, stopping", "page", page, "next", n)
			break
		}
		page = n
	}

	log.Info("medals fetched", "count", len(records))
	return records, nil
}

// nextPage reads the page query parameter of a pagination link.
func nextPage(link *goquery.Selection) (int, bool) {
	if link == nil {
		return 0, false
	}
	href, found := link.Attr("href")
	if !found || href == "" {
		return 0, false
	}
	u, err := url.Parse(href)
	if err != nil {
		return 0, false
	}
	p := u.Query().Get("page")
	if p == "" {
		return 0, true
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, false
	}
	return n, true
}

// nexusNextLink is the 下一页 link of the stock NexusPHP pager.
func nexusNextLink(doc *goquery.Document) *goquery.Selection {
	return doc.Find(`p.nexus-pagination a:contains("下一页")`).First()
}
