package fetcher

import (
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestDecodeBody_UTF8Unchanged(t *testing.T) {
	got := DecodeBody([]byte("签到成功"), "text/html; charset=gbk")
	if got != "签到成功" {
		t.Errorf("expected UTF-8 passthrough, got %q", got)
	}
}

func TestDecodeBody_DeclaredGBK(t *testing.T) {
	want := "<html><body><p>自由注册当前关闭，本站目前只接受邀请注册，请联系站内用户获取邀请码。</p></body></html>"
	raw, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(want))
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}

	got := DecodeBody(raw, "text/html; charset=GBK")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDecodeBody_MetaDeclaration(t *testing.T) {
	want := `<html><head><meta charset="gb2312"></head><body><p>今日已签到，已连续签到十天，本次签到获得魔力值奖励，请明天再来。</p></body></html>`
	raw, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(want))
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}

	got := DecodeBody(raw, "text/html")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDecodeBody_Empty(t *testing.T) {
	if got := DecodeBody(nil, ""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestDecodeBody_DetectionBeatsWrongDeclaration(t *testing.T) {
	want := "<html><head><title>签到</title></head><body><p>自由注册当前关闭，本站目前只接受邀请注册，请联系站内用户获取邀请码。</p></body></html>"
	raw, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(want))
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}

	got := DecodeBody(raw, "text/html; charset=utf-8")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
