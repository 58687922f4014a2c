// Package medal scrapes the medal (badge) shop of tracker sites into a common
// record shape.
package medal

import (
	"strconv"
	"strings"
	"time"
)

// Purchase and gift states as sites report them.
const (
	StatusBuy          = "购买"
	StatusGift         = "赠送"
	StatusOwned        = "已经购买"
	StatusOwnedAlt     = "已拥有"
	StatusNotInWindow  = "未到可购买时间"
	StatusWindowClosed = "已过可购买时间"
	StatusOutOfStock   = "库存不足"
	StatusUnknown      = "未知状态"
)

// Unlimited marks an open-ended sale window.
const Unlimited = "不限"

// TimeLayout is the sale window format used by every supported site.
const TimeLayout = "2006-01-02 15:04:05"

// Record is one medal offered by a site.
type Record struct {
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description" yaml:"description"`
	ImageSmall     string `json:"imageSmall" yaml:"imageSmall"`
	SaleBeginTime  string `json:"saleBeginTime" yaml:"saleBeginTime"`
	SaleEndTime    string `json:"saleEndTime" yaml:"saleEndTime"`
	Price          int    `json:"price" yaml:"price"`
	Site           string `json:"site" yaml:"site"`
	Validity       string `json:"validity" yaml:"validity"`
	BonusRate      string `json:"bonus_rate" yaml:"bonus_rate"`
	PurchaseStatus string `json:"purchase_status" yaml:"purchase_status"`
	GiftStatus     string `json:"gift_status" yaml:"gift_status"`
	Stock          string `json:"stock" yaml:"stock"`
}

// Field keys understood by Normalize. They match the JSON keys of Record.
const (
	FieldName           = "name"
	FieldDescription    = "description"
	FieldImageSmall     = "imageSmall"
	FieldSaleBeginTime  = "saleBeginTime"
	FieldSaleEndTime    = "saleEndTime"
	FieldPrice          = "price"
	FieldSite           = "site"
	FieldValidity       = "validity"
	FieldBonusRate      = "bonus_rate"
	FieldPurchaseStatus = "purchase_status"
	FieldGiftStatus     = "gift_status"
	FieldStock          = "stock"
)

// Fields is what a handler extracts for one medal before normalisation.
// Unknown keys are ignored.
type Fields map[string]string

// Normalize builds a Record from raw fields. Missing fields default to ""
// and the price to 0. Prices may carry thousands separators; anything that
// does not parse as a non-negative integer becomes 0.
func Normalize(f Fields) Record {
	return Record{
		Name:           strings.TrimSpace(f[FieldName]),
		Description:    strings.TrimSpace(f[FieldDescription]),
		ImageSmall:     strings.TrimSpace(f[FieldImageSmall]),
		SaleBeginTime:  strings.TrimSpace(f[FieldSaleBeginTime]),
		SaleEndTime:    strings.TrimSpace(f[FieldSaleEndTime]),
		Price:          ParsePrice(f[FieldPrice]),
		Site:           strings.TrimSpace(f[FieldSite]),
		Validity:       strings.TrimSpace(f[FieldValidity]),
		BonusRate:      strings.TrimSpace(f[FieldBonusRate]),
		PurchaseStatus: strings.TrimSpace(f[FieldPurchaseStatus]),
		GiftStatus:     strings.TrimSpace(f[FieldGiftStatus]),
		Stock:          strings.TrimSpace(f[FieldStock]),
	}
}

// ParsePrice parses "1,500" style prices. Invalid or negative input is 0.
func ParsePrice(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int(f)
	}
	return 0
}

// Purchasable reports whether the site offers the medal for purchase or as
// a gift right now.
func (r Record) Purchasable() bool {
	switch r.PurchaseStatus {
	case StatusBuy, StatusGift:
		return true
	}
	return false
}

// Owned reports whether the account already holds the medal.
func (r Record) Owned() bool {
	return r.PurchaseStatus == StatusOwned || r.PurchaseStatus == StatusOwnedAlt
}

// OnSale reports whether now falls inside the sale window. An empty or
// unparseable bound is not on sale; Unlimited on either side is.
func (r Record) OnSale(now time.Time) bool {
	begin, end := strings.TrimSpace(r.SaleBeginTime), strings.TrimSpace(r.SaleEndTime)
	if begin == "" || end == "" {
		return false
	}
	if strings.Contains(begin, Unlimited) || strings.Contains(end, Unlimited) {
		return true
	}
	begin = firstOfRange(begin)
	end = firstOfRange(end)

	loc := now.Location()
	b, err := time.ParseInLocation(TimeLayout, begin, loc)
	if err != nil {
		return false
	}
	e, err := time.ParseInLocation(TimeLayout, end, loc)
	if err != nil {
		return false
	}
	return !now.Before(b) && !now.After(e)
}

// SaleEnded reports whether the sale window has a parseable end that now is
// past.
func (r Record) SaleEnded(now time.Time) bool {
	end := strings.TrimSpace(r.SaleEndTime)
	if end == "" || strings.Contains(end, Unlimited) {
		return false
	}
	e, err := time.ParseInLocation(TimeLayout, end, now.Location())
	return err == nil && now.After(e)
}

// saleTolerance widens the lenient window on both ends.
const saleTolerance = 5 * time.Minute

// InLenientWindow is the check JSON shops use: empty, Unlimited or
// unparseable bounds count as open and the window is widened by five
// minutes on both ends. A "begin ~ end" range is split on "~".
func InLenientWindow(begin, end string, now time.Time) bool {
	if begin == "" || end == "" {
		return true
	}
	if strings.Contains(begin, "~") {
		begin = firstOfRange(begin)
	}
	if strings.Contains(end, "~") {
		end = lastOfRange(end)
	}
	if strings.Contains(begin, Unlimited) || strings.Contains(end, Unlimited) {
		return true
	}
	begin, end = strings.TrimSpace(begin), strings.TrimSpace(end)
	if begin == "" || end == "" {
		return true
	}

	loc := now.Location()
	b, err := time.ParseInLocation(TimeLayout, begin, loc)
	if err != nil {
		return true
	}
	e, err := time.ParseInLocation(TimeLayout, end, loc)
	if err != nil {
		return true
	}
	return !now.Before(b.Add(-saleTolerance)) && !now.After(e.Add(saleTolerance))
}

func firstOfRange(s string) string {
	before, _, _ := strings.Cut(s, "~")
	return strings.TrimSpace(before)
}

func lastOfRange(s string) string {
	_, after, found := strings.Cut(s, "~")
	if !found {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(after)
}

// SplitRange splits "begin ~ end" into its halves. A value without "~" is
// returned as the begin with an empty end.
func SplitRange(s string) (begin, end string) {
	before, after, _ := strings.Cut(s, "~")
	return strings.TrimSpace(before), strings.TrimSpace(after)
}
