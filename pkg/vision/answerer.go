// Package vision wraps a vision-capable chat model for the questions site
// automation needs answered: picking the label that matches a picture,
// reading a text CAPTCHA, extracting media names, translation and chat.
//
// Every query returns its answer and its failure on separate channels; a
// failed call never produces answer text.
package vision

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/jmylchreest/ptsites/internal/llm"
	"github.com/jmylchreest/ptsites/internal/logger"
)

// Prompts sent to the model.
const (
	answerPrompt     = "我将为你提供一张影视图片及一个影视名称列表，请你根据图片内容仔细观察并准确判断，选出与图片内容完全匹配的影视名称。请只输出你选择的选项名称，避免多余描述。"
	captchaPrompt    = "我将为你提供一张验证码图片，请准确识别并给出图片中的验证码字符串。请只输出你从图片中识别到的验证码，避免多余描述。"
	captchaUserText  = "请识别这张验证码图片中的内容"
	chatPrompt       = "请在接下来的对话中请使用中文回复，并且内容尽可能详细。"
	translatePrompt  = "You are a translation engine that can only translate text and cannot interpret it."
	questionPrompt   = "下面我们来玩一个游戏，你是老师，我是学生，你需要回答我的问题，我会给你一个题目和几个选项，你的回复必须是给定选项中正确答案对应的序号，请直接回复数字"
	clearCommand     = "#清除"
	clearedReply     = "会话已清除"
	defaultUser      = "MoviePilot"
	defaultMediaHint = `接下来我会给你一个电影或电视剧的文件名，你需要识别文件名中的名称、版本、分段、年份、分瓣率、季集等信息，并按以下JSON格式返回：{"name":string,"version":string,"part":string,"year":string,"resolution":string,"season":number|null,"episode":number|null}，特别注意返回结果需要严格附合JSON格式，不需要有任何其它的字符。如果中文电影或电视剧的文件名中存在谐音字或字母替代的情况，请还原最有可能的结果。`
)

var codeFence = regexp.MustCompile("^```(?:json)?\\s*([\\s\\S]*?)\\s*```$")

// Config configures the model backend.
type Config struct {
	Provider   string        `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=openai openrouter anthropic ollama"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Model      string        `mapstructure:"model" yaml:"model"`
	Proxy      string        `mapstructure:"proxy" yaml:"proxy" validate:"omitempty,url"`
	Compatible bool          `mapstructure:"compatible" yaml:"compatible"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0"`
	// MediaPrompt replaces the built-in media-name extraction prompt.
	MediaPrompt string `mapstructure:"media_prompt" yaml:"media_prompt"`
}

// MediaInfo is the structure extracted from a release file name.
type MediaInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Part       string `json:"part"`
	Year       string `json:"year"`
	Resolution string `json:"resolution"`
	Season     *int   `json:"season"`
	Episode    *int   `json:"episode"`
}

// Option customises an Answerer.
type Option func(*Answerer)

// WithProvider uses p instead of building one from the config.
func WithProvider(p llm.Provider) Option {
	return func(a *Answerer) { a.provider = p }
}

// WithClock sets the clock used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(a *Answerer) { a.now = now }
}

// WithSessionLimits overrides the chat session TTL and capacity.
func WithSessionLimits(ttl time.Duration, capacity int) Option {
	return func(a *Answerer) {
		a.sessionTTL = ttl
		a.sessionCap = capacity
	}
}

// Answerer queries a vision model. The zero value is unconfigured.
type Answerer struct {
	provider    llm.Provider
	mediaPrompt string
	now         func() time.Time
	sessionTTL  time.Duration
	sessionCap  int
	sessions    *SessionCache
}

// New creates an Answerer. Without an API key or endpoint (and no provider
// option) the result is unconfigured and every query returns
// ErrNotConfigured.
func New(cfg Config, opts ...Option) *Answerer {
	a := &Answerer{mediaPrompt: cfg.MediaPrompt}
	for _, opt := range opts {
		opt(a)
	}
	if a.mediaPrompt == "" {
		a.mediaPrompt = defaultMediaHint
	}
	a.sessions = NewSessionCache(a.sessionTTL, a.sessionCap, a.now)

	if a.provider != nil {
		return a
	}
	if cfg.APIKey == "" || cfg.BaseURL == "" {
		logger.Debug("vision model not configured")
		return a
	}

	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	pc := llm.DefaultProviderConfig()
	pc.APIKey = cfg.APIKey
	pc.BaseURL = endpoint(name, cfg.BaseURL, cfg.Compatible)
	pc.Model = cfg.Model
	pc.Proxy = cfg.Proxy
	if cfg.Timeout > 0 {
		pc.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries > 0 {
		pc.MaxRetries = cfg.MaxRetries
	}

	p, err := llm.NewProvider(name, pc)
	if err != nil {
		logger.Warn("vision model disabled", "provider", name, "error", err)
		return a
	}
	a.provider = p
	logger.Debug("vision model configured", "provider", name, "base_url", pc.BaseURL, "model", pc.Model)
	return a
}

// endpoint appends /v1 to plain OpenAI base URLs unless the endpoint is
// declared compatible or already versioned.
func endpoint(provider, base string, compatible bool) string {
	if provider != "openai" || compatible {
		return base
	}
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// Configured reports whether queries can be made.
func (a *Answerer) Configured() bool {
	return a != nil && a.provider != nil
}

// Sessions exposes the chat session cache.
func (a *Answerer) Sessions() *SessionCache {
	return a.sessions
}

// AnswerWithImage asks the model which of labels matches the image and
// returns its trimmed reply.
func (a *Answerer) AnswerWithImage(ctx context.Context, labels []string, imageRef string) (string, error) {
	return a.single(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: answerPrompt},
			{Role: llm.RoleUser, Content: strings.Join(labels, "\n"), ImageURL: NormalizeImageRef(imageRef)},
		},
		Temperature: llm.Float(0.2),
		TopP:        llm.Float(0.9),
		User:        defaultUser,
	})
}

// CaptchaWithImage reads the characters of a text CAPTCHA.
func (a *Answerer) CaptchaWithImage(ctx context.Context, imageRef string) (string, error) {
	return a.single(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: captchaPrompt},
			{Role: llm.RoleUser, Content: captchaUserText, ImageURL: NormalizeImageRef(imageRef)},
		},
		Temperature: llm.Float(0.2),
		TopP:        llm.Float(0.9),
		User:        defaultUser,
	})
}

// Translate translates text to simplified Chinese.
func (a *Answerer) Translate(ctx context.Context, text string) (string, error) {
	return a.single(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: translatePrompt},
			{Role: llm.RoleUser, Content: "translate to zh-CN:\n\n" + text},
		},
		Temperature: llm.Float(0),
		TopP:        llm.Float(1),
	})
}

// QuestionAnswer returns the option number the model picks for a
// multiple-choice question.
func (a *Answerer) QuestionAnswer(ctx context.Context, question string) (string, error) {
	return a.single(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: questionPrompt},
			{Role: llm.RoleUser, Content: question},
		},
	})
}

// MediaName extracts structured media information from a release file name.
// Output that is not valid JSON yields a *ParseError carrying the raw text.
func (a *Answerer) MediaName(ctx context.Context, filename string) (*MediaInfo, error) {
	raw, err := a.complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.mediaPrompt},
			{Role: llm.RoleUser, Content: filename},
		},
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	var info MediaInfo
	if err := json.Unmarshal([]byte(content), &info); err != nil {
		return nil, &ParseError{Content: raw, Err: err}
	}
	return &info, nil
}

// Respond continues the chat session identified by userID. The message
// "#清除" clears the session instead of querying the model. A turn is only
// recorded once the model has answered.
func (a *Answerer) Respond(ctx context.Context, text, userID string) (string, error) {
	if !a.Configured() {
		return "", ErrNotConfigured
	}
	if userID == "" {
		return "", ErrMissingUser
	}
	if text == clearCommand {
		a.sessions.Delete(userID)
		return clearedReply, nil
	}

	history, ok := a.sessions.Get(userID)
	if !ok {
		history = []llm.Message{{Role: llm.RoleSystem, Content: chatPrompt}}
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: text})

	reply, err := a.complete(ctx, llm.CompletionRequest{Messages: history})
	if err != nil {
		return "", err
	}
	if reply != "" {
		a.sessions.Set(userID, append(history, llm.Message{Role: llm.RoleAssistant, Content: reply}))
	}
	return reply, nil
}

// single runs a one-shot query and trims the reply.
func (a *Answerer) single(ctx context.Context, req llm.CompletionRequest) (string, error) {
	out, err := a.complete(ctx, req)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyAnswer
	}
	return out, nil
}

func (a *Answerer) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if !a.Configured() {
		return "", ErrNotConfigured
	}
	resp, err := a.provider.Complete(ctx, req)
	if err != nil {
		ierr := classify(err)
		logger.Debug("vision query failed", "provider", a.provider.Name(), "category", ierr.Category.String(), "error", err)
		return "", ierr
	}
	return resp.Content, nil
}

// NormalizeImageRef passes URLs and data URIs through and treats anything
// else as bare base64 JPEG data.
func NormalizeImageRef(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http") || strings.HasPrefix(ref, "data:") {
		return ref
	}
	return "data:image/jpeg;base64," + ref
}
