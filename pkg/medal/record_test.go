package medal

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalize_Defaults(t *testing.T) {
	rec := Normalize(Fields{FieldName: " 勋章 ", "unknown": "x"})
	if rec.Name != "勋章" {
		t.Errorf("Name = %q, want trimmed", rec.Name)
	}
	if rec.Price != 0 || rec.Stock != "" || rec.PurchaseStatus != "" {
		t.Errorf("unexpected non-default fields: %+v", rec)
	}

	data, err := json.Marshal(Normalize(nil))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]any{
		"name": "", "description": "", "imageSmall": "", "saleBeginTime": "",
		"saleEndTime": "", "price": float64(0), "site": "", "validity": "",
		"bonus_rate": "", "purchase_status": "", "gift_status": "", "stock": "",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %#v, want %#v", k, got[k], v)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := map[string]int{
		"":        0,
		"1,500":   1500,
		" 300 ":   300,
		"12.0":    12,
		"-5":      0,
		"free":    0,
		"100,000": 100000,
	}
	for in, want := range tests {
		if got := ParsePrice(in); got != want {
			t.Errorf("ParsePrice(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestRecord_OnSale(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	tests := []struct {
		name       string
		begin, end string
		want       bool
	}{
		{"inside", "2024-05-01 00:00:00", "2024-07-01 00:00:00", true},
		{"before", "2024-06-02 00:00:00", "2024-07-01 00:00:00", false},
		{"after", "2024-05-01 00:00:00", "2024-06-01 11:59:59", false},
		{"on begin", "2024-06-01 12:00:00", "2024-07-01 00:00:00", true},
		{"empty", "", "2024-07-01 00:00:00", false},
		{"unlimited", "不限", "不限", true},
		{"unparseable", "soon", "later", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{SaleBeginTime: tt.begin, SaleEndTime: tt.end}
			if got := r.OnSale(now); got != tt.want {
				t.Errorf("OnSale = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInLenientWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	tests := []struct {
		name       string
		begin, end string
		want       bool
	}{
		{"empty is open", "", "", true},
		{"unlimited", "不限", "2020-01-01 00:00:00", true},
		{"unparseable is open", "soon", "later", true},
		{"within tolerance before", "2024-06-01 12:04:00", "2024-07-01 00:00:00", true},
		{"beyond tolerance before", "2024-06-01 12:06:00", "2024-07-01 00:00:00", false},
		{"within tolerance after", "2024-05-01 00:00:00", "2024-06-01 11:56:00", true},
		{"ended", "2024-05-01 00:00:00", "2024-05-31 00:00:00", false},
		{"range end", "2024-05-01 00:00:00", "2024-05-01 00:00:00 ~ 2024-07-01 00:00:00", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InLenientWindow(tt.begin, tt.end, now); got != tt.want {
				t.Errorf("InLenientWindow(%q, %q) = %v, want %v", tt.begin, tt.end, got, tt.want)
			}
		})
	}
}

func TestPurchasable(t *testing.T) {
	records := []Record{
		{Name: "a", PurchaseStatus: StatusBuy},
		{Name: "b", PurchaseStatus: StatusOwned},
		{Name: "c", PurchaseStatus: StatusGift},
		{Name: "d", PurchaseStatus: "库存不足"},
	}
	got := Purchasable(records)
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Errorf("Purchasable = %+v", got)
	}
	if !records[1].Owned() {
		t.Error("Owned() = false for 已经购买")
	}
}

func TestSplitRange(t *testing.T) {
	b, e := SplitRange("2024-01-01 00:00:00 ~ 2024-02-01 00:00:00")
	if b != "2024-01-01 00:00:00" || e != "2024-02-01 00:00:00" {
		t.Errorf("SplitRange = %q, %q", b, e)
	}
	b, e = SplitRange("不限")
	if b != "不限" || e != "" {
		t.Errorf("SplitRange(不限) = %q, %q", b, e)
	}
}

func TestRecord_SaleEnded(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	tests := []struct {
		end  string
		want bool
	}{
		{"2024-06-01 11:59:59", true},
		{"2024-06-01 12:00:00", false},
		{"不限", false},
		{"", false},
		{"soon", false},
	}
	for _, tt := range tests {
		if got := (Record{SaleEndTime: tt.end}).SaleEnded(now); got != tt.want {
			t.Errorf("SaleEnded(%q) = %v, want %v", tt.end, got, tt.want)
		}
	}
}
