package signin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/fetcher"
	"github.com/jmylchreest/ptsites/pkg/phash"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// Option is one selectable answer of a picture question.
type Option struct {
	Value string
	Label string
}

// Captcha is a picture question extracted from a sign-in form.
type Captcha struct {
	ImageURL string
	Options  []Option
}

// Resolution is the answer chosen for a Captcha.
type Resolution struct {
	Option
	// Hash is the image hash, empty when the image could not be hashed.
	Hash      string
	FromCache bool
}

// Resolver failures.
var (
	ErrNoImage   = errors.New("captcha image unavailable")
	ErrNoOptions = errors.New("captcha has no options")
	ErrNoAnswer  = errors.New("model returned no answer")
	ErrNoMatch   = errors.New("answer matches no option")
)

// CaptchaResolver answers picture questions, consulting the answer cache
// before the model.
type CaptchaResolver struct {
	env Env
}

// NewCaptchaResolver creates a resolver using env's client, cache and model.
func NewCaptchaResolver(env Env) *CaptchaResolver {
	return &CaptchaResolver{env: env}
}

// Resolve downloads the image, hashes it and picks an option.
func (r *CaptchaResolver) Resolve(ctx context.Context, d site.Descriptor, c Captcha) (Resolution, error) {
	log := logger.ForSite(d.Key(), "signin.captcha")

	if c.ImageURL == "" {
		return Resolution{}, ErrNoImage
	}
	if len(c.Options) == 0 {
		return Resolution{}, ErrNoOptions
	}

	img, err := r.env.Client.Download(ctx, d, c.ImageURL)
	if err == nil && len(img.Body) == 0 {
		err = fetcher.ErrEmptyBody
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrNoImage, err)
	}

	hash, err := phash.Compute(img.Body)
	if err != nil {
		log.Warn("captcha image could not be hashed", "url", c.ImageURL, "error", err)
	}

	if hash != "" && r.env.Cache != nil {
		cached, ok, err := r.env.Cache.Lookup(hash)
		if err != nil {
			log.Warn("answer cache lookup failed", "error", err)
		}
		if ok {
			if opt, found := matchOption(c.Options, cached); found {
				log.Info("captcha answered from cache", "hash", hash, "answer", opt.Label)
				return Resolution{Option: opt, Hash: hash, FromCache: true}, nil
			}
			log.Warn("cached answer is not among the options", "hash", hash, "answer", cached)
		}
	}

	if r.env.Answerer == nil || !r.env.Answerer.Configured() {
		return Resolution{}, fmt.Errorf("%w: vision model not configured", ErrNoAnswer)
	}

	imageRef := c.ImageURL
	if mime, err := fetcher.SniffImageMIME(img.Body, img.ContentType); err == nil {
		imageRef = fetcher.DataURI(mime, img.Body)
	}

	labels := make([]string, len(c.Options))
	for i, o := range c.Options {
		labels[i] = o.Label
	}
	answer, err := r.env.Answerer.AnswerWithImage(ctx, labels, imageRef)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrNoAnswer, err)
	}
	log.Info("vision model answered", "answer", answer)

	opt, found := matchOption(c.Options, answer)
	if !found {
		return Resolution{}, fmt.Errorf("%w: %q", ErrNoMatch, answer)
	}
	return Resolution{Option: opt, Hash: hash}, nil
}

// Confirm records a freshly inferred answer after the site accepted it.
// Answers that came from the cache are not written again.
func (r *CaptchaResolver) Confirm(d site.Descriptor, res Resolution) {
	if res.FromCache || res.Hash == "" || r.env.Cache == nil {
		return
	}
	if err := r.env.Cache.Store(res.Hash, res.Label); err != nil {
		logger.ForSite(d.Key(), "signin.captcha").Warn("answer cache write failed", "error", err)
	}
}

// matchOption compares answer with each label after trimming and case
// folding. No fuzzy matching is attempted.
func matchOption(options []Option, answer string) (Option, bool) {
	want := strings.ToLower(strings.TrimSpace(answer))
	for _, o := range options {
		if strings.ToLower(strings.TrimSpace(o.Label)) == want {
			return o, true
		}
	}
	return Option{}, false
}

// message maps a resolver error to the operator-facing text.
func message(err error) string {
	switch {
	case errors.Is(err, ErrNoImage):
		return MsgNoImage
	case errors.Is(err, ErrNoOptions):
		return MsgNoOptions
	case errors.Is(err, ErrNoAnswer):
		return MsgNoAnswer
	case errors.Is(err, ErrNoMatch):
		return MsgNoMatch
	default:
		return MsgUnexpectedError
	}
}
