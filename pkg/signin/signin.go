// Package signin performs daily check-in against tracker sites. Sites that
// guard check-in with a picture question are answered from a perceptual-hash
// answer cache first and a vision model second.
package signin

import (
	"context"
	"regexp"

	"github.com/jmylchreest/ptsites/pkg/site"
)

// Messages reported to operators.
const (
	MsgNotConfigured   = "签到失败，ChatGPT插件未配置"
	MsgUnreachable     = "签到失败，请检查站点连通性"
	MsgCookieExpired   = "签到失败，Cookie已失效"
	MsgAlreadySigned   = "今日已签到"
	MsgNoImage         = "签到失败，未获取到签到图片"
	MsgNoOptions       = "签到失败，未获取到答案选项"
	MsgNoAnswer        = "签到失败，ChatGPT未返回答案"
	MsgNoMatch         = "签到失败，未获取到匹配答案"
	MsgSubmitFailed    = "签到失败，签到接口请求失败"
	MsgSucceeded       = "签到成功"
	MsgCheckPage       = "签到失败，请到页面查看"
	MsgUnexpectedError = "签到失败"
)

// Result is the outcome of one sign-in attempt. Success is only set when a
// success marker was found in the site's response.
type Result struct {
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message" yaml:"message"`
}

func failed(msg string) Result    { return Result{Message: msg} }
func succeeded(msg string) Result { return Result{Success: true, Message: msg} }

// Answerer picks the label matching an image.
type Answerer interface {
	Configured() bool
	AnswerWithImage(ctx context.Context, labels []string, imageRef string) (string, error)
}

// AnswerStore remembers answers a site accepted, keyed by image hash.
type AnswerStore interface {
	Lookup(hash string) (string, bool, error)
	Store(hash, answer string) error
}

// Env carries what handlers need besides the site itself.
type Env struct {
	Client   site.Client
	Answerer Answerer
	Cache    AnswerStore
}

// Handler signs in to one kind of site.
type Handler interface {
	SignIn(ctx context.Context, env Env, d site.Descriptor) Result
}

var (
	pixelCounts = regexp.MustCompile(`\d+px`)
	numericIDs  = regexp.MustCompile(`#\d+`)
)

// MatchesAny reports whether any pattern matches body once pixel sizes and
// #123 style ids have been removed.
func MatchesAny(body string, patterns []*regexp.Regexp) bool {
	text := numericIDs.ReplaceAllString(pixelCounts.ReplaceAllString(body, ""), "")
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// DefaultRegistry returns the built-in handlers. Sites without a dedicated
// handler use the NexusPHP attendance page.
func DefaultRegistry() *site.Registry[Handler] {
	r := site.NewRegistry(site.Entry[Handler]{
		Name: "signin.attendance",
		New:  func() Handler { return &Attendance{} },
	})
	r.Register(site.Entry[Handler]{
		Name:    "signin.tjupt",
		SiteURL: TjuptURL,
		New:     func() Handler { return &Tjupt{} },
	})
	return r
}
