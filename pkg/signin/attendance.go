package signin

import (
	"context"
	"regexp"
	"strings"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/site"
)

var (
	attendanceSucceeded = []*regexp.Regexp{
		regexp.MustCompile(`这是您的第.*次签到`),
		regexp.MustCompile(`签到成功`),
	}
	attendanceSigned = []*regexp.Regexp{
		regexp.MustCompile(`今日已签到`),
		regexp.MustCompile(`今天已经签过到`),
		regexp.MustCompile(`已签到`),
	}
)

// Attendance signs in by visiting the NexusPHP attendance page, which
// records the check-in as a side effect of loading.
type Attendance struct{}

// SignIn implements Handler.
func (h *Attendance) SignIn(ctx context.Context, env Env, d site.Descriptor) Result {
	log := logger.ForSite(d.Key(), "signin.attendance")

	signURL := d.Resolve("/attendance.php")
	page, err := env.Client.Page(ctx, d, signURL)
	if err != nil || page.HTML == "" {
		log.Error("attendance page unavailable", "url", signURL, "error", err)
		return failed(MsgUnreachable)
	}
	if strings.Contains(page.HTML, "login.php") && !strings.Contains(page.HTML, "logout.php") {
		log.Error("cookie expired")
		return failed(MsgCookieExpired)
	}

	switch {
	case MatchesAny(page.HTML, attendanceSucceeded):
		log.Info("signed in")
		return succeeded(MsgSucceeded)
	case MatchesAny(page.HTML, attendanceSigned):
		log.Info("already signed in today")
		return succeeded(MsgAlreadySigned)
	default:
		log.Error("no sign-in marker on attendance page")
		return failed(MsgCheckPage)
	}
}
