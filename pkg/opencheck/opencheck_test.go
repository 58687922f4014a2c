package opencheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/ptsites/pkg/site"
)

func newSite(t *testing.T, mux *http.ServeMux) (site.Descriptor, Env) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	tr := site.NewTransport(site.TransportConfig{Timeout: 5 * time.Second, Attempts: 1})
	t.Cleanup(func() { _ = tr.Close() })
	return site.Descriptor{ID: "test", Name: "测试", URL: srv.URL + "/", Cookie: "uid=1"}, Env{Client: tr}
}

func page(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func TestDefault_ClosedKeyword(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/signup.php", page(`<html><body><p>自由注册当前关闭</p></body></html>`))
	d, env := newSite(t, mux)

	status, msg, err := (&Default{}).Check(context.Background(), env, d)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status != StatusClosed || msg != "检测到关闭注册关键词: 自由注册当前关闭" {
		t.Errorf("got (%s, %q)", status, msg)
	}
}

func TestDefault_SendsNoCookie(t *testing.T) {
	var cookie string
	mux := http.NewServeMux()
	mux.HandleFunc("/signup.php", func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		page(`<form><input type="submit"></form>`)(w, r)
	})
	d, env := newSite(t, mux)

	if status, _, err := (&Default{}).Check(context.Background(), env, d); err != nil || status != StatusOpen {
		t.Fatalf("got %s, %v", status, err)
	}
	if cookie != "" {
		t.Errorf("cookie sent to sign-up page: %q", cookie)
	}
}

func TestDefault_RedirectAwayFromSignup(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/signup.php", http.RedirectHandler("/login.php", http.StatusFound))
	mux.HandleFunc("/login.php", page(`<form><input type="submit"></form>`))
	d, env := newSite(t, mux)

	status, msg, err := (&Default{}).Check(context.Background(), env, d)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status != StatusUnknown || !strings.HasPrefix(msg, "不支持的注册模板: ") || !strings.HasSuffix(msg, "/login.php") {
		t.Errorf("got (%s, %q)", status, msg)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status Status
		msg    string
	}{
		{
			name:   "closed beats submit",
			body:   `<form><p>注册已关闭</p><input type="submit" value="注册"></form>`,
			status: StatusClosed,
			msg:    "检测到关闭注册关键词: 注册已关闭",
		},
		{
			name:   "submit",
			body:   `<form><input type="submit" value="OK"></form>`,
			status: StatusOpen,
			msg:    "检测到提交按钮，可能开放注册",
		},
		{
			name:   "button",
			body:   `<div><button class="x">Sign Up now</button></div>`,
			status: StatusOpen,
			msg:    "检测到注册按钮: Sign Up",
		},
		{
			name:   "button case-insensitive",
			body:   `<BUTTON>create ACCOUNT</BUTTON>`,
			status: StatusOpen,
			msg:    "检测到注册按钮: Create account",
		},
		{
			name:   "form",
			body:   "<form action=\"x\">\n<label>Register</label>\n</form>",
			status: StatusOpen,
			msg:    "检测到注册表单，可能开放注册",
		},
		{
			name:   "traditional closed",
			body:   `<p>註冊已關閉</p>`,
			status: StatusClosed,
			msg:    "检测到关闭注册关键词: 註冊已關閉",
		},
		{
			name:   "english closed",
			body:   `<h2>Registration is closed</h2>`,
			status: StatusClosed,
			msg:    "检测到关闭注册关键词: Registration is closed",
		},
		{
			name:   "nothing",
			body:   `<p>hello</p>`,
			status: StatusUnknown,
			msg:    "无法确定注册状态",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := Classify(tt.body)
			if status != tt.status || msg != tt.msg {
				t.Errorf("Classify = (%s, %q), want (%s, %q)", status, msg, tt.status, tt.msg)
			}
		})
	}
}

func TestSiteHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler Handler
		path    string
		body    string
		status  Status
	}{
		{"byr open", &Byr{}, "/register", `<h1>新用户注册</h1>`, StatusOpen},
		{"byr closed", &Byr{}, "/register", `<h1>登录</h1>`, StatusClosed},
		{"monikadesign open", &MonikaDesign{}, "/application", `<a>申请注册</a>`, StatusOpen},
		{"skyeysnow needs both", &SkyeySnow{}, "/member.php", `<input type="submit">`, StatusClosed},
		{"skyeysnow open", &SkyeySnow{}, "/member.php", `<button type="submit">立即注册</button>`, StatusOpen},
		{"tjupt closed", &Tjupt{}, "/api_signup.php", `不开放自由注册`, StatusClosed},
		{"tjupt open", &Tjupt{}, "/api_signup.php", `{}`, StatusOpen},
		{"zhuque open", &Zhuque{}, "/api/user/registStatus", `{"data":{"registOpen":true}}`, StatusOpen},
		{"zhuque closed", &Zhuque{}, "/api/user/registStatus", `{"data":{"registOpen":false}}`, StatusClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(tt.path, page(tt.body))
			d, env := newSite(t, mux)

			if u := tt.handler.SignupURL(d); !strings.HasPrefix(u, strings.TrimRight(d.URL, "/")+tt.path) {
				t.Errorf("SignupURL = %s", u)
			}
			status, _, err := tt.handler.Check(context.Background(), env, d)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if status != tt.status {
				t.Errorf("status = %s, want %s", status, tt.status)
			}
		})
	}
}

type failingHandler struct{}

func (failingHandler) SignupURL(d site.Descriptor) string { return d.URL + "signup.php" }

func (failingHandler) Check(context.Context, Env, site.Descriptor) (Status, string, error) {
	return "", "", errors.New("connection refused")
}

func TestRun_ErrorBecomesStatus(t *testing.T) {
	d := site.Descriptor{Name: "x", URL: "https://x.example/"}
	res := Run(context.Background(), Env{}, failingHandler{}, d)
	if res.Status != StatusError || res.Message != "检查失败: connection refused" {
		t.Errorf("Run = %+v", res)
	}
	if res.SignupURL != "https://x.example/signup.php" {
		t.Errorf("SignupURL = %s", res.SignupURL)
	}
}

func TestRun_UnreachableSite(t *testing.T) {
	mux := http.NewServeMux()
	d, env := newSite(t, mux)
	res := Run(context.Background(), env, &Default{}, d)
	if res.Status != StatusError || !strings.HasPrefix(res.Message, "检查失败: ") {
		t.Errorf("Run = %+v", res)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, e := range r.Entries() {
		if got := r.Lookup(e.SiteURL).Name; got != e.Name {
			t.Errorf("Lookup(%s) = %s, want %s", e.SiteURL, got, e.Name)
		}
	}
	if _, name := r.Resolve("https://tjupt.org/"); name != "opencheck.tjupt" {
		t.Errorf("tjupt without www resolved to %s", name)
	}
	if _, name := r.Resolve("https://pt.example/"); name != "opencheck.default" {
		t.Errorf("fallback = %s", name)
	}
	if !StatusOpen.Settled() || StatusUnknown.Settled() {
		t.Error("Settled mismatch")
	}
}

func TestClosedKeywords_PerLocale(t *testing.T) {
	count := map[string]int{}
	for _, k := range ClosedKeywords {
		count[k]++
	}
	// zh-CN and zh-TW both list the shared apology.
	if count["抱歉"] != 2 {
		t.Errorf("抱歉 listed %d times, want 2", count["抱歉"])
	}
	for _, k := range []string{"对不起", "對不起"} {
		if count[k] != 1 {
			t.Errorf("%s listed %d times, want 1", k, count[k])
		}
	}
}
