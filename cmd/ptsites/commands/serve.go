package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ptsites/internal/batch"
	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/internal/scheduler"
	"github.com/jmylchreest/ptsites/internal/store"
	"github.com/jmylchreest/ptsites/internal/version"
	"github.com/jmylchreest/ptsites/pkg/opencheck"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run sign-in, medal and registration batches on a schedule",
	Long: `Run the batches on the cron expressions under "schedule" in the config
file. Expressions take five fields (minute first) or six (seconds first);
an empty expression disables the batch. Results are recorded in the
database and can be listed with "ptsites runs".`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("run-now", false, "run every scheduled batch once at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	repo, err := a.openStore()
	if err != nil {
		return err
	}

	sites := a.cfg.Sites
	if len(sites) == 0 {
		return fmt.Errorf("no sites configured")
	}
	checkSites := sites
	if !a.cfg.OpenCheck.IncludePublic {
		checkSites = batch.PrivateSites(sites)
	}
	runner := a.runner(a.cfg.SiteTransport())
	checker := a.runner(a.cfg.CheckTransport())

	jobs := []scheduler.Job{
		{
			Name:     store.KindSignIn,
			Schedule: a.cfg.Schedule.SignIn,
			Run: func(ctx context.Context) error {
				started := time.Now()
				outcomes := runner.SignIn(ctx, sites)
				rctx, cancel := recordContext(ctx)
				defer cancel()
				_, err := repo.RecordSignIn(rctx, started, outcomes)
				return err
			},
		},
		{
			Name:     store.KindMedals,
			Schedule: a.cfg.Schedule.Medals,
			Run: func(ctx context.Context) error {
				started := time.Now()
				outcomes := runner.Medals(ctx, sites)
				if n := len(batch.Purchasable(outcomes)); n > 0 {
					logger.Info("purchasable medals found", "count", n)
				}
				rctx, cancel := recordContext(ctx)
				defer cancel()
				_, err := repo.RecordMedals(rctx, started, outcomes)
				return err
			},
		},
		{
			Name:     store.KindOpenCheck,
			Schedule: a.cfg.Schedule.OpenCheck,
			Run: func(ctx context.Context) error {
				previous, err := repo.LatestOpenCheck(ctx)
				if err != nil {
					return err
				}
				started := time.Now()
				outcomes := checker.OpenCheck(ctx, checkSites, forSites(previous, checkSites))
				if n := batch.Tally(outcomes)[opencheck.StatusOpen]; n > 0 {
					logger.Info("sites with open registration", "count", n)
				}
				rctx, cancel := recordContext(ctx)
				defer cancel()
				_, err = repo.RecordOpenCheck(rctx, started, outcomes)
				return err
			},
		},
	}

	sched := scheduler.New()
	for _, job := range jobs {
		if job.Schedule == "" {
			logger.Info("job disabled", "job", job.Name)
			continue
		}
		job.Timeout = a.cfg.Schedule.Timeout
		if err := sched.Add(job); err != nil {
			return err
		}
	}
	if len(sched.Jobs()) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	ctx, cancel := signalContext()
	defer cancel()

	sched.Start(ctx)
	defer sched.Stop()
	logger.Info("ptsites serving", "version", version.String(), "sites", len(sites))
	for _, name := range sched.Jobs() {
		if next, ok := sched.NextRun(name); ok {
			logger.Info("next run", "job", name, "at", next.Format(time.DateTime))
		}
	}

	if runNow, _ := cmd.Flags().GetBool("run-now"); runNow {
		for _, name := range sched.Jobs() {
			if ctx.Err() != nil {
				break
			}
			if err := sched.Trigger(name); err != nil {
				logger.Warn("trigger failed", "job", name, "error", err)
			}
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
