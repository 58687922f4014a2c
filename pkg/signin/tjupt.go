package signin

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// TjuptURL is the site served by Tjupt.
const TjuptURL = "https://www.tjupt.org/"

var (
	tjuptSigned    = []*regexp.Regexp{regexp.MustCompile(`<a href="attendance.php">今日已签到</a>`)}
	tjuptSucceeded = []*regexp.Regexp{regexp.MustCompile(`今日已签到`), regexp.MustCompile(`签到成功`)}
)

// Tjupt answers the film-still question on the attendance page.
type Tjupt struct{}

// SignIn implements Handler.
func (h *Tjupt) SignIn(ctx context.Context, env Env, d site.Descriptor) Result {
	log := logger.ForSite(d.Key(), "signin.tjupt")

	if env.Answerer == nil || !env.Answerer.Configured() {
		log.Error("vision model not configured")
		return failed(MsgNotConfigured)
	}

	signURL := d.Resolve("/attendance.php")
	page, err := env.Client.Page(ctx, d, signURL)
	if err != nil || page.HTML == "" {
		log.Error("sign-in page unavailable", "url", signURL, "error", err)
		return failed(MsgUnreachable)
	}
	if strings.Contains(page.HTML, "login.php") {
		log.Error("cookie expired")
		return failed(MsgCookieExpired)
	}
	if MatchesAny(page.HTML, tjuptSigned) {
		log.Info("already signed in today")
		return succeeded(MsgAlreadySigned)
	}

	captcha, err := parseTjuptCaptcha(page.HTML)
	if err != nil {
		log.Error("sign-in form unreadable", "error", err)
		return failed(MsgUnexpectedError)
	}
	if captcha.ImageURL != "" {
		captcha.ImageURL = d.Resolve(captcha.ImageURL)
	}
	log.Info("captcha found", "image", captcha.ImageURL, "options", len(captcha.Options))

	resolver := NewCaptchaResolver(env)
	res, err := resolver.Resolve(ctx, d, captcha)
	if err != nil {
		log.Error("captcha unresolved", "error", err)
		return failed(message(err))
	}

	form := url.Values{
		"ban_robot": {res.Value},
		"submit":    {"提交"},
	}
	log.Debug("submitting answer", "value", res.Value, "label", res.Label, "from_cache", res.FromCache)
	resp, err := env.Client.Submit(ctx, d, signURL, form)
	if err != nil {
		log.Error("sign-in submission failed", "error", err)
		return failed(MsgSubmitFailed)
	}

	if !MatchesAny(resp.HTML, tjuptSucceeded) {
		if res.FromCache {
			log.Warn("site rejected a cached answer", "hash", res.Hash, "answer", res.Label)
		}
		log.Error("no success marker after submission")
		return failed(MsgCheckPage)
	}

	resolver.Confirm(d, res)
	log.Info("signed in", "answer", res.Label)
	return succeeded(MsgSucceeded)
}

// parseTjuptCaptcha reads the image and the ban_robot radio options, whose
// labels are the text nodes that follow each input.
func parseTjuptCaptcha(body string) (Captcha, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Captcha{}, err
	}
	var c Captcha
	c.ImageURL, _ = doc.Find("table.captcha img").First().Attr("src")

	doc.Find(`input[name="ban_robot"]`).Each(func(_ int, s *goquery.Selection) {
		value, ok := s.Attr("value")
		if !ok {
			return
		}
		label := followingText(s.Get(0))
		if label == "" {
			return
		}
		c.Options = append(c.Options, Option{Value: value, Label: label})
	})
	return c, nil
}

// followingText returns the first non-blank text node after n among its
// siblings.
func followingText(n *html.Node) string {
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.TextNode {
			continue
		}
		if t := strings.TrimSpace(sib.Data); t != "" {
			return t
		}
	}
	return ""
}
