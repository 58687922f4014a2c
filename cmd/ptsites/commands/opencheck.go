package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ptsites/internal/batch"
	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/opencheck"
	"github.com/jmylchreest/ptsites/pkg/site"
)

var opencheckCmd = &cobra.Command{
	Use:   "opencheck [site...]",
	Short: "Check which sites accept new registrations",
	Long: `Check the registration page of every configured site, or only the sites
named. Public sites are skipped unless opencheck.include_public is set.

Sites whose previous check ended in an error or an unknown state are not
checked again; pass --retry to check them anyway.`,
	RunE: runOpenCheck,
}

func init() {
	rootCmd.AddCommand(opencheckCmd)
	opencheckCmd.Flags().Bool("retry", false, "re-check sites whose previous check failed")
}

func runOpenCheck(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	sites, err := a.selectSites(args)
	if err != nil {
		return err
	}
	if !a.cfg.OpenCheck.IncludePublic {
		sites = batch.PrivateSites(sites)
	}

	repo, err := a.openStore()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var previous []batch.CheckOutcome
	if retry, _ := cmd.Flags().GetBool("retry"); !retry {
		if previous, err = repo.LatestOpenCheck(ctx); err != nil {
			logger.Warn("failed to load previous results", "error", err)
		}
		previous = forSites(previous, sites)
	}

	started := time.Now()
	outcomes := a.runner(a.cfg.CheckTransport()).OpenCheck(ctx, sites, previous)
	rctx, rcancel := recordContext(ctx)
	if _, err := repo.RecordOpenCheck(rctx, started, outcomes); err != nil {
		logger.Error("failed to record run", "error", err)
	}
	rcancel()

	counts := batch.Tally(outcomes)
	logInfo("open %d, closed %d, unknown %d, error %d",
		counts[opencheck.StatusOpen], counts[opencheck.StatusClosed],
		counts[opencheck.StatusUnknown], counts[opencheck.StatusError])

	return writeResults(cmd, asAny(outcomes))
}

// forSites keeps the previous outcomes of the selected sites.
func forSites(previous []batch.CheckOutcome, sites []site.Descriptor) []batch.CheckOutcome {
	keys := make(map[string]bool, len(sites))
	for _, d := range sites {
		keys[d.Key()] = true
	}
	var out []batch.CheckOutcome
	for _, p := range previous {
		if keys[p.Site] {
			out = append(out, p)
		}
	}
	return out
}
