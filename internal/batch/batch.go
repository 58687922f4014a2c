// Package batch runs one handler family over a list of sites, one site at a
// time. A failing or panicking site is recorded and the run moves on.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/medal"
	"github.com/jmylchreest/ptsites/pkg/opencheck"
	"github.com/jmylchreest/ptsites/pkg/signin"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// Runner holds the shared collaborators of a batch.
type Runner struct {
	Client   site.Client
	Answerer signin.Answerer
	Cache    signin.AnswerStore
	// Now is the clock stamped on outcomes. Nil means time.Now.
	Now func() time.Time

	// Registries default to each family's DefaultRegistry.
	SignInHandlers *site.Registry[signin.Handler]
	MedalHandlers  *site.Registry[medal.Handler]
	CheckHandlers  *site.Registry[opencheck.Handler]
}

// Outcome identifies the site and handler behind a result.
type Outcome struct {
	Site      string    `json:"site" yaml:"site"`
	Name      string    `json:"name" yaml:"name"`
	URL       string    `json:"url" yaml:"url"`
	Handler   string    `json:"handler" yaml:"handler"`
	CheckedAt time.Time `json:"check_time" yaml:"check_time"`
}

// SignInOutcome is the sign-in result of one site.
type SignInOutcome struct {
	Outcome       `yaml:",inline"`
	signin.Result `yaml:",inline"`
}

// MedalOutcome is the medal shop of one site.
type MedalOutcome struct {
	Outcome `yaml:",inline"`
	Medals  []medal.Record `json:"medals" yaml:"medals"`
	Error   string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// CheckOutcome is the registration state of one site.
type CheckOutcome struct {
	Outcome          `yaml:",inline"`
	opencheck.Result `yaml:",inline"`
	// Carried is set when the result was copied from the previous run.
	Carried bool `json:"carried,omitempty" yaml:"carried,omitempty"`
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) outcome(d site.Descriptor, handler string) Outcome {
	return Outcome{
		Site:      d.Key(),
		Name:      d.Name,
		URL:       d.URL,
		Handler:   handler,
		CheckedAt: r.now(),
	}
}

// contain runs fn and turns a panic into an error.
func contain(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

// SignIn signs in to every site in order.
func (r *Runner) SignIn(ctx context.Context, sites []site.Descriptor) []SignInOutcome {
	reg := r.SignInHandlers
	if reg == nil {
		reg = signin.DefaultRegistry()
	}
	env := signin.Env{Client: r.Client, Answerer: r.Answerer, Cache: r.Cache}

	out := make([]SignInOutcome, 0, len(sites))
	for _, d := range sites {
		if ctx.Err() != nil {
			logger.Warn("sign-in batch cancelled", "remaining", len(sites)-len(out))
			break
		}
		h, name := reg.Resolve(d.URL)
		o := SignInOutcome{Outcome: r.outcome(d, name)}
		err := contain(func() error {
			o.Result = h.SignIn(ctx, env, d)
			return nil
		})
		if err != nil {
			logger.Error("sign-in handler crashed", "site", d.Key(), "handler", name, "error", err)
			o.Result = signin.Result{Message: fmt.Sprintf("%s: %v", signin.MsgUnexpectedError, err)}
		}
		logger.Info("sign-in finished", "site", d.Key(), "success", o.Success, "message", o.Message)
		out = append(out, o)
	}
	return out
}

// Medals fetches the medal shop of every site in order.
func (r *Runner) Medals(ctx context.Context, sites []site.Descriptor) []MedalOutcome {
	reg := r.MedalHandlers
	if reg == nil {
		reg = medal.DefaultRegistry()
	}
	env := medal.Env{Client: r.Client, Now: r.Now}

	out := make([]MedalOutcome, 0, len(sites))
	for _, d := range sites {
		if ctx.Err() != nil {
			logger.Warn("medal batch cancelled", "remaining", len(sites)-len(out))
			break
		}
		h, name := reg.Resolve(d.URL)
		o := MedalOutcome{Outcome: r.outcome(d, name)}
		err := contain(func() error {
			records, err := h.FetchMedals(ctx, env, d)
			o.Medals = records
			return err
		})
		if err != nil {
			logger.Error("medal fetch failed", "site", d.Key(), "handler", name, "error", err)
			o.Error = err.Error()
		}
		out = append(out, o)
	}
	return out
}

// Purchasable collects the medals that can be bought or gifted across all
// outcomes.
func Purchasable(outcomes []MedalOutcome) []medal.Record {
	var out []medal.Record
	for _, o := range outcomes {
		out = append(out, medal.Purchasable(o.Medals)...)
	}
	return out
}

// PrivateSites drops public sites, which have open registration by nature.
func PrivateSites(sites []site.Descriptor) []site.Descriptor {
	out := make([]site.Descriptor, 0, len(sites))
	for _, d := range sites {
		if !d.Public {
			out = append(out, d)
		}
	}
	return out
}

// OpenCheck checks the registration state of every site in order. Sites
// whose previous result was an error or unknown are not checked again; their
// previous result is carried into the output instead.
func (r *Runner) OpenCheck(ctx context.Context, sites []site.Descriptor, previous []CheckOutcome) []CheckOutcome {
	reg := r.CheckHandlers
	if reg == nil {
		reg = opencheck.DefaultRegistry()
	}
	env := opencheck.Env{Client: r.Client}

	out := make([]CheckOutcome, 0, len(sites))
	skip := make(map[string]bool)
	for _, p := range previous {
		if !p.Status.Settled() {
			skip[p.Site] = true
			p.Carried = true
			out = append(out, p)
		}
	}

	for _, d := range sites {
		if skip[d.Key()] {
			logger.Info("previous check failed, skipping", "site", d.Key())
			continue
		}
		if ctx.Err() != nil {
			logger.Warn("registration batch cancelled", "site", d.Key())
			break
		}
		h, name := reg.Resolve(d.URL)
		o := CheckOutcome{Outcome: r.outcome(d, name)}
		err := contain(func() error {
			o.Result = opencheck.Run(ctx, env, h, d)
			return nil
		})
		if err != nil {
			logger.Error("registration handler crashed", "site", d.Key(), "handler", name, "error", err)
			o.Result = opencheck.Result{
				Status:    opencheck.StatusError,
				Message:   "检查失败: " + err.Error(),
				SignupURL: h.SignupURL(d),
			}
		}
		logger.Info("registration checked", "site", d.Key(), "status", o.Status, "message", o.Message)
		out = append(out, o)
	}
	return out
}

// Tally counts check outcomes by status.
func Tally(outcomes []CheckOutcome) map[opencheck.Status]int {
	counts := make(map[opencheck.Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}
