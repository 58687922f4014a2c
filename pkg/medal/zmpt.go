package medal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// ZmptURL is the site served by Zmpt.
const ZmptURL = "https://zmpt.cc/"

const zmptMedalsPath = "/javaapi/user/queryAllMedals"

// Zmpt reads the medal shop from the site's JSON API.
type Zmpt struct{}

type zmptResponse struct {
	Result struct {
		Medals      []json.RawMessage `json:"medals"`
		MedalGroups []struct {
			MedalList []json.RawMessage `json:"medalList"`
		} `json:"medalGroups"`
	} `json:"result"`
}

type zmptMedal struct {
	Name                string      `json:"name"`
	ImageSmall          string      `json:"imageSmall"`
	Price               json.Number `json:"price"`
	SaleBeginTime       string      `json:"saleBeginTime"`
	SaleEndTime         string      `json:"saleEndTime"`
	HasMedal            bool        `json:"hasMedal"`
	BonusAdditionFactor json.Number `json:"bonusAdditionFactor"`
}

// FetchMedals implements Handler.
func (h *Zmpt) FetchMedals(ctx context.Context, env Env, d site.Descriptor) ([]Record, error) {
	log := logger.ForSite(d.Key(), "medal.zmpt")

	// The API answers JSON, so never hand it to the browser.
	api := d
	api.Render = false
	target := d.Resolve(zmptMedalsPath)
	content, err := env.Client.Page(ctx, api, target)
	if err != nil {
		return nil, fmt.Errorf("fetch medal api: %w", err)
	}

	var resp zmptResponse
	if err := json.Unmarshal(content.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode medal api: %w", err)
	}

	raw := append([]json.RawMessage{}, resp.Result.Medals...)
	for _, g := range resp.Result.MedalGroups {
		raw = append(raw, g.MedalList...)
	}

	siteName := siteName(d)
	now := env.now()
	seen := make(map[string]bool, len(raw))
	items := make([]item, 0, len(raw))
	for _, m := range raw {
		rec := zmptRecord(m, siteName, now)
		if seen[rec.Name] {
			continue
		}
		seen[rec.Name] = true
		items = append(items, ok(rec))
	}

	records := collect(log, items)
	log.Info("medals fetched", "count", len(records))
	return records, nil
}

// zmptRecord maps one API medal. A medal that cannot be decoded is still
// reported, with an unknown purchase status.
func zmptRecord(raw json.RawMessage, siteName string, now time.Time) Record {
	var m zmptMedal
	if err := json.Unmarshal(raw, &m); err != nil {
		var partial struct {
			Name       string `json:"name"`
			ImageSmall string `json:"imageSmall"`
		}
		_ = json.Unmarshal(raw, &partial)
		if partial.Name == "" {
			partial.Name = "未知勋章"
		}
		logger.Debug("medal decode failed", "site", siteName, "name", partial.Name, "error", err)
		return Normalize(Fields{
			FieldName:           partial.Name,
			FieldImageSmall:     partial.ImageSmall,
			FieldSite:           siteName,
			FieldPurchaseStatus: StatusUnknown,
		})
	}

	status := StatusNotInWindow
	switch {
	case m.HasMedal:
		status = StatusOwned
	case InLenientWindow(m.SaleBeginTime, m.SaleEndTime, now):
		status = StatusBuy
	}

	factor := 0.0
	if m.BonusAdditionFactor != "" {
		if f, err := m.BonusAdditionFactor.Float64(); err == nil {
			factor = f
		}
	}

	return Normalize(Fields{
		FieldName:           m.Name,
		FieldImageSmall:     m.ImageSmall,
		FieldSaleBeginTime:  m.SaleBeginTime,
		FieldSaleEndTime:    m.SaleEndTime,
		FieldPrice:          m.Price.String(),
		FieldSite:           siteName,
		FieldBonusRate:      fmt.Sprintf("%.f%%", factor*100),
		FieldPurchaseStatus: status,
	})
}

func siteName(d site.Descriptor) string {
	if d.Name != "" {
		return d.Name
	}
	return d.Key()
}
