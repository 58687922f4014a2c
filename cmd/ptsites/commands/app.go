package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/ptsites/internal/batch"
	"github.com/jmylchreest/ptsites/internal/config"
	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/internal/output"
	"github.com/jmylchreest/ptsites/internal/store"
	"github.com/jmylchreest/ptsites/pkg/phash"
	"github.com/jmylchreest/ptsites/pkg/site"
	"github.com/jmylchreest/ptsites/pkg/vision"
)

// app holds what commands share once the config is loaded.
type app struct {
	cfg      *config.Config
	answerer *vision.Answerer
	cache    *phash.AnswerCache
	closers  []func() error
}

// setup initializes logging and loads the configuration.
func setup() (*app, error) {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", "path", used)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return nil, err
	}
	cfg.ResolveVision()
	logger.Debug("config loaded", "sites", len(cfg.Sites), "data_dir", cfg.DataDir)

	return &app{
		cfg:      cfg,
		answerer: vision.New(cfg.Vision),
		cache:    phash.NewAnswerCache(cfg.CachePath),
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// recordTimeout bounds storing a finished run.
const recordTimeout = 30 * time.Second

// recordContext keeps the values of ctx but not its deadline or
// cancellation, so a run cut short is still stored.
func recordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
}

// runner builds a batch runner over a transport with the given settings.
func (a *app) runner(tc site.TransportConfig) *batch.Runner {
	t := site.NewTransport(tc)
	a.closers = append(a.closers, t.Close)
	return &batch.Runner{
		Client:   t,
		Answerer: a.answerer,
		Cache:    a.cache,
	}
}

// openStore opens the results database.
func (a *app) openStore() (*store.Repository, error) {
	repo, err := store.New(a.cfg.Database)
	if err != nil {
		logger.Error("failed to open store", "path", a.cfg.Database, "error", err)
		return nil, err
	}
	a.closers = append(a.closers, repo.Close)
	return repo, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}
}

// selectSites returns the configured sites named by ids, or all of them.
func (a *app) selectSites(ids []string) ([]site.Descriptor, error) {
	if len(ids) == 0 {
		if len(a.cfg.Sites) == 0 {
			return nil, fmt.Errorf("no sites configured")
		}
		return a.cfg.Sites, nil
	}
	out := make([]site.Descriptor, 0, len(ids))
	for _, id := range ids {
		d, ok := a.cfg.Site(id)
		if !ok {
			return nil, fmt.Errorf("unknown site: %s", id)
		}
		out = append(out, d)
	}
	return out, nil
}

// writeResults renders items with the --format and --output flags.
func writeResults(cmd *cobra.Command, items []any) error {
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("output")
	dst, err := output.Open(outPath)
	if err != nil {
		logger.Error("failed to create output file", "path", outPath, "error", err)
		return err
	}
	defer dst.Close()

	writer, err := output.NewWriter(dst, format)
	if err != nil {
		return err
	}
	if err := writer.WriteAll(items); err != nil {
		logger.Error("failed to write output", "error", err)
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if outPath != "" && outPath != "-" {
		logInfo("Results written to %s", outPath)
	}
	return nil
}

// asAny converts a typed slice for the output writers.
func asAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// failIf exits non-zero after output when any site failed.
func failIf(failures int, what string) error {
	if failures > 0 {
		return fmt.Errorf("%d %s failed", failures, what)
	}
	return nil
}
