package opencheck

import (
	"context"
	"strings"

	"github.com/jmylchreest/ptsites/pkg/site"
)

// Sites with their own sign-up flow.
const (
	ByrURL          = "https://byr.pt/"
	MonikaDesignURL = "https://monikadesign.uk/"
	SkyeySnowURL    = "https://skyeysnow.com/"
	TjuptURL        = "https://www.tjupt.org"
	ZhuqueURL       = "https://zhuque.in/"
)

const notOpen = "未检测到开放注册关键词"

// Byr only opens registration to university addresses.
type Byr struct{}

func (h *Byr) SignupURL(d site.Descriptor) string { return signupPath(d, "/register") }

func (h *Byr) Check(ctx context.Context, env Env, d site.Descriptor) (Status, string, error) {
	body, _, err := fetch(ctx, env, d, h.SignupURL(d))
	if err != nil {
		return "", "", err
	}
	if strings.Contains(body, "新用户注册") {
		return StatusOpen, "站点自由注册已经关闭，但开放高校自由注册", nil
	}
	return StatusClosed, notOpen, nil
}

// MonikaDesign takes applications that are reviewed by staff.
type MonikaDesign struct{}

func (h *MonikaDesign) SignupURL(d site.Descriptor) string { return signupPath(d, "/application") }

func (h *MonikaDesign) Check(ctx context.Context, env Env, d site.Descriptor) (Status, string, error) {
	body, _, err := fetch(ctx, env, d, h.SignupURL(d))
	if err != nil {
		return "", "", err
	}
	if strings.Contains(body, "申请注册") {
		return StatusOpen, "检测到站点开放申请注册（需要审批）", nil
	}
	return StatusClosed, notOpen, nil
}

// SkyeySnow runs Discuz, whose register form needs the sh token.
type SkyeySnow struct{}

func (h *SkyeySnow) SignupURL(d site.Descriptor) string {
	return signupPath(d, "/member.php?mod=register&sh=1718005224")
}

func (h *SkyeySnow) Check(ctx context.Context, env Env, d site.Descriptor) (Status, string, error) {
	body, _, err := fetch(ctx, env, d, h.SignupURL(d))
	if err != nil {
		return "", "", err
	}
	if strings.Contains(body, `type="submit"`) && strings.Contains(body, "立即注册") {
		return StatusOpen, "检测到提交按钮，可能开放注册", nil
	}
	return StatusClosed, notOpen, nil
}

// Tjupt exposes its registration state through api_signup.php.
type Tjupt struct{}

func (h *Tjupt) SignupURL(d site.Descriptor) string { return signupPath(d, "/api_signup.php") }

func (h *Tjupt) Check(ctx context.Context, env Env, d site.Descriptor) (Status, string, error) {
	body, _, err := fetch(ctx, env, d, h.SignupURL(d))
	if err != nil {
		return "", "", err
	}
	if kw := "不开放自由注册"; strings.Contains(body, kw) {
		return StatusClosed, "检测到关闭注册关键词: " + kw, nil
	}
	return StatusOpen, "未检测到关闭注册数据，可能开放注册", nil
}

// Zhuque reports registration state from a JSON endpoint.
type Zhuque struct{}

func (h *Zhuque) SignupURL(d site.Descriptor) string {
	return signupPath(d, "/api/user/registStatus")
}

func (h *Zhuque) Check(ctx context.Context, env Env, d site.Descriptor) (Status, string, error) {
	body, _, err := fetch(ctx, env, d, h.SignupURL(d))
	if err != nil {
		return "", "", err
	}
	if strings.Contains(body, `"registOpen":true`) {
		return StatusOpen, "检测到开放注册关键词registOpen:true，可能开放注册", nil
	}
	return StatusClosed, notOpen, nil
}
