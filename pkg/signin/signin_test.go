package signin

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/jmylchreest/ptsites/pkg/phash"
	"github.com/jmylchreest/ptsites/pkg/site"
)

const captchaPage = `<html><body>
<form method="post" action="attendance.php">
<table class="captcha"><tr><td><img src="/captcha.png?id=7"></td></tr></table>
<table><tr><td>
<input type="radio" name="ban_robot" value="1"> Movie A <br>
<input type="radio" name="ban_robot" value="2"> Movie B <br>
</td></tr></table>
<input type="submit" name="submit" value="提交">
</form>
<a href="logout.php">退出</a>
</body></html>`

// stubAnswerer returns a fixed answer and counts calls.
type stubAnswerer struct {
	answer string
	err    error
	calls  int
	labels []string
	image  string
}

func (s *stubAnswerer) Configured() bool { return true }

func (s *stubAnswerer) AnswerWithImage(ctx context.Context, labels []string, imageRef string) (string, error) {
	s.calls++
	s.labels = labels
	s.image = imageRef
	return s.answer, s.err
}

// tjuptSite fakes the attendance endpoint.
type tjuptSite struct {
	mu        sync.Mutex
	page      string
	reply     string
	submitted []string
	image     []byte
}

func (ts *tjuptSite) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/attendance.php", func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		defer ts.mu.Unlock()
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm() error = %v", err)
			}
			if r.PostForm.Get("submit") != "提交" {
				t.Errorf("expected submit=提交, got %q", r.PostForm.Get("submit"))
			}
			ts.submitted = append(ts.submitted, r.PostForm.Get("ban_robot"))
			_, _ = w.Write([]byte(ts.reply))
			return
		}
		_, _ = w.Write([]byte(ts.page))
	})
	mux.HandleFunc("/captcha.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(ts.image)
	})
	return mux
}

func stillPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func newTjuptFixture(t *testing.T) (*tjuptSite, site.Descriptor, *phash.AnswerCache) {
	t.Helper()
	ts := &tjuptSite{page: captchaPage, reply: `<a href="attendance.php">今日已签到</a>`, image: stillPNG(t)}
	srv := httptest.NewServer(ts.handler(t))
	t.Cleanup(srv.Close)

	d := site.Descriptor{ID: "tjupt", Name: "北洋园", URL: srv.URL + "/", Cookie: "uid=1"}
	cache := phash.NewAnswerCache(filepath.Join(t.TempDir(), "tjupt.json"))
	return ts, d, cache
}

func testEnv(a Answerer, cache AnswerStore) Env {
	return Env{
		Client:   site.NewTransport(site.TransportConfig{Attempts: 1}),
		Answerer: a,
		Cache:    cache,
	}
}

func TestTjupt_CachedAnswerSkipsInference(t *testing.T) {
	ts, d, cache := newTjuptFixture(t)
	hash, err := phash.Compute(ts.image)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if err := cache.Store(hash, "Movie B"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	ans := &stubAnswerer{answer: "Movie A"}
	res := (&Tjupt{}).SignIn(context.Background(), testEnv(ans, cache), d)

	if !res.Success || res.Message != MsgSucceeded {
		t.Fatalf("unexpected result %+v", res)
	}
	if ans.calls != 0 {
		t.Errorf("expected no inference call, got %d", ans.calls)
	}
	if len(ts.submitted) != 1 || ts.submitted[0] != "2" {
		t.Errorf("expected value 2 to be submitted, got %v", ts.submitted)
	}
}

func TestTjupt_InferredAnswerIsCachedAndReused(t *testing.T) {
	ts, d, cache := newTjuptFixture(t)
	ans := &stubAnswerer{answer: "  movie a "}
	env := testEnv(ans, cache)

	first := (&Tjupt{}).SignIn(context.Background(), env, d)
	if !first.Success {
		t.Fatalf("first sign-in failed: %+v", first)
	}
	if ans.calls != 1 {
		t.Fatalf("expected one inference call, got %d", ans.calls)
	}
	if len(ans.labels) != 2 || ans.labels[0] != "Movie A" || ans.labels[1] != "Movie B" {
		t.Errorf("unexpected labels %v", ans.labels)
	}
	if want := "data:image/png;base64,"; len(ans.image) < len(want) || ans.image[:len(want)] != want {
		t.Errorf("expected PNG data URI, got %.40s", ans.image)
	}

	hash, _ := phash.Compute(ts.image)
	cached, ok, err := cache.Lookup(hash)
	if err != nil || !ok || cached != "Movie A" {
		t.Fatalf("expected Movie A cached, got %q ok=%v err=%v", cached, ok, err)
	}

	second := (&Tjupt{}).SignIn(context.Background(), env, d)
	if !second.Success {
		t.Fatalf("second sign-in failed: %+v", second)
	}
	if ans.calls != 1 {
		t.Errorf("expected cache hit on second run, got %d inference calls", ans.calls)
	}
	if len(ts.submitted) != 2 || ts.submitted[1] != "1" {
		t.Errorf("unexpected submissions %v", ts.submitted)
	}
}

func TestTjupt_RejectedSubmissionNotCached(t *testing.T) {
	ts, d, cache := newTjuptFixture(t)
	ts.reply = "<html>答案错误</html>"
	ans := &stubAnswerer{answer: "Movie B"}

	res := (&Tjupt{}).SignIn(context.Background(), testEnv(ans, cache), d)
	if res.Success || res.Message != MsgCheckPage {
		t.Errorf("unexpected result %+v", res)
	}
	if n, _ := cache.Len(); n != 0 {
		t.Errorf("expected nothing cached, got %d entries", n)
	}
}

func TestTjupt_NoMatchingAnswer(t *testing.T) {
	ts, d, cache := newTjuptFixture(t)
	res := (&Tjupt{}).SignIn(context.Background(), testEnv(&stubAnswerer{answer: "Movie C"}, cache), d)
	if res.Success || res.Message != MsgNoMatch {
		t.Errorf("unexpected result %+v", res)
	}
	if len(ts.submitted) != 0 {
		t.Errorf("nothing should be submitted, got %v", ts.submitted)
	}
}

func TestTjupt_InferenceFailure(t *testing.T) {
	_, d, cache := newTjuptFixture(t)
	res := (&Tjupt{}).SignIn(context.Background(), testEnv(&stubAnswerer{err: errors.New("rate limited")}, cache), d)
	if res.Message != MsgNoAnswer {
		t.Errorf("expected %q, got %+v", MsgNoAnswer, res)
	}
}

func TestTjupt_AlreadySigned(t *testing.T) {
	ts, d, cache := newTjuptFixture(t)
	ts.page = `<html><body><a href="attendance.php">今日已签到</a><a href="logout.php">x</a></body></html>`
	ans := &stubAnswerer{}

	res := (&Tjupt{}).SignIn(context.Background(), testEnv(ans, cache), d)
	if !res.Success || res.Message != MsgAlreadySigned {
		t.Errorf("unexpected result %+v", res)
	}
	if ans.calls != 0 {
		t.Error("already signed should not query the model")
	}
}

func TestTjupt_CookieExpired(t *testing.T) {
	ts, d, cache := newTjuptFixture(t)
	ts.page = `<html><body><form action="takelogin.php"><a href="login.php">登录</a></form></body></html>`

	res := (&Tjupt{}).SignIn(context.Background(), testEnv(&stubAnswerer{}, cache), d)
	if res.Success || res.Message != MsgCookieExpired {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestTjupt_NoOptions(t *testing.T) {
	ts, d, cache := newTjuptFixture(t)
	ts.page = `<html><body><table class="captcha"><tr><td><img src="/captcha.png"></td></tr></table></body></html>`

	res := (&Tjupt{}).SignIn(context.Background(), testEnv(&stubAnswerer{}, cache), d)
	if res.Message != MsgNoOptions {
		t.Errorf("expected %q, got %+v", MsgNoOptions, res)
	}
}

func TestTjupt_NotConfigured(t *testing.T) {
	_, d, cache := newTjuptFixture(t)
	res := (&Tjupt{}).SignIn(context.Background(), testEnv(nil, cache), d)
	if res.Message != MsgNotConfigured {
		t.Errorf("expected %q, got %+v", MsgNotConfigured, res)
	}
}

func TestParseTjuptCaptcha(t *testing.T) {
	c, err := parseTjuptCaptcha(captchaPage)
	if err != nil {
		t.Fatalf("parseTjuptCaptcha() error = %v", err)
	}
	if c.ImageURL != "/captcha.png?id=7" {
		t.Errorf("unexpected image %q", c.ImageURL)
	}
	want := []Option{{"1", "Movie A"}, {"2", "Movie B"}}
	if len(c.Options) != len(want) {
		t.Fatalf("expected %d options, got %v", len(want), c.Options)
	}
	for i := range want {
		if c.Options[i] != want[i] {
			t.Errorf("option %d = %+v, want %+v", i, c.Options[i], want[i])
		}
	}
}

func TestMatchesAny_StripsVolatileText(t *testing.T) {
	patterns := []*regexp.Regexp{regexp.MustCompile(`已签到 , 连续 天`)}
	body := "已签到 #1024, 连续 12px天"
	if !MatchesAny(body, patterns) {
		t.Error("expected match after stripping ids and pixel sizes")
	}
	if MatchesAny("nothing here", patterns) {
		t.Error("unexpected match")
	}
}

func TestMatchOption(t *testing.T) {
	options := []Option{{"1", "Movie A"}, {"2", " Movie B "}}
	if o, ok := matchOption(options, "MOVIE B"); !ok || o.Value != "2" {
		t.Errorf("expected case-insensitive trimmed match, got %+v %v", o, ok)
	}
	if _, ok := matchOption(options, "Movie"); ok {
		t.Error("partial answers must not match")
	}
}

func TestAttendance(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		success bool
		message string
	}{
		{"fresh", `<p>这是您的第 3 次签到，已连续签到 3 天</p><a href="logout.php">x</a>`, true, MsgSucceeded},
		{"again", `<p>您今天已经签过到了</p><a href="logout.php">x</a>`, true, MsgAlreadySigned},
		{"expired", `<a href="login.php">登录</a>`, false, MsgCookieExpired},
		{"unknown", `<p>hello</p><a href="logout.php">x</a>`, false, MsgCheckPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html><body>" + tt.page + "</body></html>"))
			}))
			defer srv.Close()

			d := site.Descriptor{Name: "nexus", URL: srv.URL}
			res := (&Attendance{}).SignIn(context.Background(), testEnv(nil, nil), d)
			if res.Success != tt.success || res.Message != tt.message {
				t.Errorf("got %+v, want success=%v message=%q", res, tt.success, tt.message)
			}
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	if _, name := r.Resolve("https://tjupt.org"); name != "signin.tjupt" {
		t.Errorf("expected tjupt handler, got %s", name)
	}
	if _, name := r.Resolve("https://example.org"); name != "signin.attendance" {
		t.Errorf("expected fallback handler, got %s", name)
	}
}
