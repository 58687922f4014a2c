package opencheck

import (
	"context"
	"regexp"
	"strings"

	"github.com/jmylchreest/ptsites/pkg/site"
)

// ClosedKeywords mark a sign-up page that refuses registrations. They are
// checked before any sign of an open form.
var ClosedKeywords = []string{
	// zh-CN
	"自由注册当前关闭", "自由注册关闭", "对不起", "抱歉", "注册已关闭", "暂不开放注册", "注册功能暂时关闭",
	"注册暂时关闭", "注册功能已关闭", "暂时关闭注册", "注册已暂停", "注册关闭", "关闭注册", "注册暂停",
	"暂停注册", "不开放自由注册", "封闭运行",
	// zh-TW
	"自由註冊當前關閉", "自由註冊關閉", "對不起", "抱歉", "註冊已關閉", "暫不開放註冊", "註冊功能暫時關閉",
	"註冊暫時關閉", "註冊功能已關閉", "暫時關閉註冊", "註冊已暫停", "註冊關閉", "關閉註冊", "註冊暫停",
	"暫停註冊", "不開放自由註冊",
	// en
	"No moar open signups", "Signup-ul este momentan oprit",
	"Free registration not engaged", "Registration is closed", "Registration is temporarily closed",
}

// OpenKeywords are looked for inside buttons and inputs.
var OpenKeywords = []string{
	"注册", "立即注册", "免费注册", "新用户注册", "用户注册",
	"註冊", "立即註冊", "免費註冊", "新用戶註冊", "用戶註冊",
	"Sign Up", "Sign up", "Create account", "Create Account",
}

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

func controlPatterns(tag string) []keywordPattern {
	out := make([]keywordPattern, len(OpenKeywords))
	for i, kw := range OpenKeywords {
		out[i] = keywordPattern{
			keyword: kw,
			re:      regexp.MustCompile(`(?i)<` + tag + `[^>]*>.*` + regexp.QuoteMeta(kw) + `.*</` + tag + `>`),
		}
	}
	return out
}

var (
	buttonPatterns = controlPatterns("button")
	inputPatterns  = controlPatterns("input")
	registerForm   = regexp.MustCompile(`(?is)<form[^>]*>.*(?:注册|註冊|register|signup).*</form>`)
)

// Default reads {site}/signup.php and applies keyword heuristics.
type Default struct{}

// SignupURL implements Handler.
func (h *Default) SignupURL(d site.Descriptor) string {
	return signupPath(d, "/signup.php")
}

// Check implements Handler.
func (h *Default) Check(ctx context.Context, env Env, d site.Descriptor) (Status, string, error) {
	body, finalURL, err := fetch(ctx, env, d, h.SignupURL(d))
	if err != nil {
		return "", "", err
	}
	if !strings.Contains(finalURL, "/signup") {
		return StatusUnknown, "不支持的注册模板: " + finalURL, nil
	}
	status, msg := Classify(body)
	return status, msg, nil
}

// Classify applies the sign-up page heuristics in priority order: closed
// keywords, a submit control, a registration button or input, a
// registration form.
func Classify(body string) (Status, string) {
	for _, kw := range ClosedKeywords {
		if strings.Contains(body, kw) {
			return StatusClosed, "检测到关闭注册关键词: " + kw
		}
	}

	if strings.Contains(body, `type="submit"`) {
		return StatusOpen, "检测到提交按钮，可能开放注册"
	}

	for _, p := range buttonPatterns {
		if p.re.MatchString(body) {
			return StatusOpen, "检测到注册按钮: " + p.keyword
		}
	}
	for _, p := range inputPatterns {
		if p.re.MatchString(body) {
			return StatusOpen, "检测到注册输入框: " + p.keyword
		}
	}

	if registerForm.MatchString(body) {
		return StatusOpen, "检测到注册表单，可能开放注册"
	}
	return StatusUnknown, "无法确定注册状态"
}
