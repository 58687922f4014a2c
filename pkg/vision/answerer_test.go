package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/ptsites/internal/llm"
)

// fakeProvider records requests and replies from a script.
type fakeProvider struct {
	replies  []string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return llm.CompletionResponse{}, f.err
	}
	reply := ""
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	return llm.CompletionResponse{Content: reply}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func TestNew_UnconfiguredWithoutKeyOrEndpoint(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{APIKey: "sk"},
		{BaseURL: "https://api.openai.com"},
	} {
		a := New(cfg)
		if a.Configured() {
			t.Errorf("expected unconfigured for %+v", cfg)
		}
		if _, err := a.AnswerWithImage(context.Background(), []string{"A"}, "https://img"); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("AnswerWithImage() error = %v, want ErrNotConfigured", err)
		}
		if _, err := a.MediaName(context.Background(), "x.mkv"); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("MediaName() error = %v, want ErrNotConfigured", err)
		}
		if _, err := a.Respond(context.Background(), "hi", "u1"); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("Respond() error = %v, want ErrNotConfigured", err)
		}
	}
}

func TestNew_BuildsProvider(t *testing.T) {
	a := New(Config{APIKey: "sk-test", BaseURL: "https://api.example.com"})
	if !a.Configured() {
		t.Fatal("expected configured answerer")
	}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		provider   string
		base       string
		compatible bool
		want       string
	}{
		{"openai", "https://api.openai.com", false, "https://api.openai.com/v1"},
		{"openai", "https://api.openai.com/", false, "https://api.openai.com/v1"},
		{"openai", "https://api.openai.com/v1", false, "https://api.openai.com/v1"},
		{"openai", "https://proxy.example/openai", true, "https://proxy.example/openai"},
		{"anthropic", "https://api.anthropic.com", false, "https://api.anthropic.com"},
	}
	for _, tt := range tests {
		if got := endpoint(tt.provider, tt.base, tt.compatible); got != tt.want {
			t.Errorf("endpoint(%q, %q, %v) = %q, want %q", tt.provider, tt.base, tt.compatible, got, tt.want)
		}
	}
}

func TestAnswerWithImage_BuildsPrompt(t *testing.T) {
	fp := &fakeProvider{replies: []string{"  Movie B\n"}}
	a := New(Config{}, WithProvider(fp))

	got, err := a.AnswerWithImage(context.Background(), []string{"Movie A", "Movie B"}, "https://img.example/c.jpg")
	if err != nil {
		t.Fatalf("AnswerWithImage() error = %v", err)
	}
	if got != "Movie B" {
		t.Errorf("expected trimmed answer, got %q", got)
	}

	req := fp.requests[0]
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem {
		t.Fatalf("unexpected messages %+v", req.Messages)
	}
	user := req.Messages[1]
	if user.Content != "Movie A\nMovie B" {
		t.Errorf("expected newline-joined labels, got %q", user.Content)
	}
	if user.ImageURL != "https://img.example/c.jpg" {
		t.Errorf("unexpected image ref %q", user.ImageURL)
	}
	if req.Temperature == nil || *req.Temperature != 0.2 || req.TopP == nil || *req.TopP != 0.9 {
		t.Errorf("unexpected sampling %v %v", req.Temperature, req.TopP)
	}
	if req.User != "MoviePilot" {
		t.Errorf("unexpected user %q", req.User)
	}
}

func TestAnswerWithImage_InferenceErrorSeparateFromAnswer(t *testing.T) {
	fp := &fakeProvider{err: &llm.StatusError{Provider: "fake", StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}}
	a := New(Config{}, WithProvider(fp))

	got, err := a.AnswerWithImage(context.Background(), []string{"A"}, "https://img")
	if got != "" {
		t.Errorf("expected no answer text on failure, got %q", got)
	}
	var ierr *InferenceError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *InferenceError, got %T", err)
	}
	if ierr.Category != CategoryRateLimited {
		t.Errorf("expected rate-limited category, got %v", ierr.Category)
	}
	if !strings.HasPrefix(ierr.Error(), "请求被限流") {
		t.Errorf("unexpected message %q", ierr.Error())
	}
}

func TestAnswerWithImage_EmptyReply(t *testing.T) {
	a := New(Config{}, WithProvider(&fakeProvider{replies: []string{"   "}}))
	if _, err := a.AnswerWithImage(context.Background(), []string{"A"}, "x"); !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("expected ErrEmptyAnswer, got %v", err)
	}
}

func TestCaptchaWithImage(t *testing.T) {
	fp := &fakeProvider{replies: []string{"ab12"}}
	a := New(Config{}, WithProvider(fp))

	got, err := a.CaptchaWithImage(context.Background(), "QUJD")
	if err != nil {
		t.Fatalf("CaptchaWithImage() error = %v", err)
	}
	if got != "ab12" {
		t.Errorf("unexpected answer %q", got)
	}
	if ref := fp.requests[0].Messages[1].ImageURL; ref != "data:image/jpeg;base64,QUJD" {
		t.Errorf("expected bare base64 to become a JPEG data URI, got %q", ref)
	}
}

func TestMediaName_StripsCodeFence(t *testing.T) {
	reply := "```json\n{\"name\":\"流浪地球\",\"version\":\"\",\"part\":\"\",\"year\":\"2019\",\"resolution\":\"2160p\",\"season\":null,\"episode\":null}\n```"
	a := New(Config{}, WithProvider(&fakeProvider{replies: []string{reply}}))

	info, err := a.MediaName(context.Background(), "The.Wandering.Earth.2019.2160p.mkv")
	if err != nil {
		t.Fatalf("MediaName() error = %v", err)
	}
	if info.Name != "流浪地球" || info.Year != "2019" || info.Resolution != "2160p" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Season != nil || info.Episode != nil {
		t.Errorf("expected null season/episode, got %v %v", info.Season, info.Episode)
	}
}

func TestMediaName_ParseErrorKeepsContent(t *testing.T) {
	a := New(Config{}, WithProvider(&fakeProvider{replies: []string{"sorry, no idea"}}))

	_, err := a.MediaName(context.Background(), "x.mkv")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if perr.Content != "sorry, no idea" {
		t.Errorf("expected raw content, got %q", perr.Content)
	}
	if !strings.HasPrefix(perr.Error(), "JSON 解析错误") {
		t.Errorf("unexpected error text %q", perr.Error())
	}
}

func TestMediaName_CustomPrompt(t *testing.T) {
	fp := &fakeProvider{replies: []string{`{"name":"x"}`}}
	a := New(Config{MediaPrompt: "custom"}, WithProvider(fp))
	if _, err := a.MediaName(context.Background(), "x.mkv"); err != nil {
		t.Fatalf("MediaName() error = %v", err)
	}
	if fp.requests[0].Messages[0].Content != "custom" {
		t.Errorf("expected custom prompt, got %q", fp.requests[0].Messages[0].Content)
	}
}

func TestRespond_KeepsHistory(t *testing.T) {
	fp := &fakeProvider{replies: []string{"你好", "再见"}}
	a := New(Config{}, WithProvider(fp))
	ctx := context.Background()

	if _, err := a.Respond(ctx, "hi", "u1"); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if _, err := a.Respond(ctx, "bye", "u1"); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	second := fp.requests[1].Messages
	if len(second) != 4 {
		t.Fatalf("expected system, user, assistant, user; got %d messages", len(second))
	}
	if second[0].Content != chatPrompt || second[2].Content != "你好" || second[3].Content != "bye" {
		t.Errorf("unexpected history %+v", second)
	}
}

func TestRespond_MissingUser(t *testing.T) {
	a := New(Config{}, WithProvider(&fakeProvider{}))
	if _, err := a.Respond(context.Background(), "hi", ""); !errors.Is(err, ErrMissingUser) {
		t.Errorf("expected ErrMissingUser, got %v", err)
	}
}

func TestRespond_ClearCommand(t *testing.T) {
	fp := &fakeProvider{replies: []string{"a"}}
	a := New(Config{}, WithProvider(fp))
	ctx := context.Background()

	_, _ = a.Respond(ctx, "hi", "u1")
	got, err := a.Respond(ctx, "#清除", "u1")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if got != "会话已清除" {
		t.Errorf("unexpected reply %q", got)
	}
	if _, ok := a.Sessions().Get("u1"); ok {
		t.Error("expected session to be cleared")
	}
	if len(fp.requests) != 1 {
		t.Errorf("clear should not query the model, got %d requests", len(fp.requests))
	}
}

func TestRespond_FailedTurnNotRecorded(t *testing.T) {
	fp := &fakeProvider{err: errors.New("boom")}
	a := New(Config{}, WithProvider(fp))

	if _, err := a.Respond(context.Background(), "hi", "u1"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := a.Sessions().Get("u1"); ok {
		t.Error("failed turn should not create a session")
	}
}

func TestRespond_SessionExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	fp := &fakeProvider{replies: []string{"a", "b"}}
	a := New(Config{}, WithProvider(fp), WithClock(clock))
	ctx := context.Background()

	_, _ = a.Respond(ctx, "first", "u1")
	now = now.Add(DefaultSessionTTL)
	_, _ = a.Respond(ctx, "second", "u1")

	if n := len(fp.requests[1].Messages); n != 2 {
		t.Errorf("expected a fresh session after TTL, got %d messages", n)
	}
}

func TestTranslateAndQuestion(t *testing.T) {
	fp := &fakeProvider{replies: []string{"你好世界", "2"}}
	a := New(Config{}, WithProvider(fp))
	ctx := context.Background()

	got, err := a.Translate(ctx, "hello world")
	if err != nil || got != "你好世界" {
		t.Fatalf("Translate() = %q, %v", got, err)
	}
	if fp.requests[0].Messages[1].Content != "translate to zh-CN:\n\nhello world" {
		t.Errorf("unexpected translate prompt %q", fp.requests[0].Messages[1].Content)
	}
	if *fp.requests[0].Temperature != 0 {
		t.Errorf("expected temperature 0")
	}

	got, err = a.QuestionAnswer(ctx, "1+1=?\n1. 1\n2. 2")
	if err != nil || got != "2" {
		t.Fatalf("QuestionAnswer() = %q, %v", got, err)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		err  error
		want Category
	}{
		{&llm.StatusError{StatusCode: 401}, CategoryAuth},
		{&llm.StatusError{StatusCode: 400}, CategoryBadRequest},
		{&llm.StatusError{StatusCode: 429}, CategoryRateLimited},
		{&llm.StatusError{StatusCode: 500}, CategoryOther},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), CategoryTimeout},
		{errors.New("strange"), CategoryOther},
	}
	for _, tt := range tests {
		if got := categoryOf(tt.err); got != tt.want {
			t.Errorf("categoryOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
