package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ptsites/internal/batch"
	"github.com/jmylchreest/ptsites/internal/logger"
)

var medalsCmd = &cobra.Command{
	Use:   "medals [site...]",
	Short: "Scrape the medal shops of the configured sites",
	Long: `Scrape the medal shop of every configured site, or only the sites named.

With --purchasable only medals that can be bought or gifted are printed,
as a flat list across all sites.`,
	RunE: runMedals,
}

func init() {
	rootCmd.AddCommand(medalsCmd)
	medalsCmd.Flags().Bool("purchasable", false, "only list medals that can be bought now")
	medalsCmd.Flags().Bool("no-store", false, "do not record the run in the database")
}

func runMedals(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	sites, err := a.selectSites(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	started := time.Now()
	outcomes := a.runner(a.cfg.SiteTransport()).Medals(ctx, sites)

	if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
		repo, err := a.openStore()
		if err != nil {
			return err
		}
		rctx, rcancel := recordContext(ctx)
		if _, err := repo.RecordMedals(rctx, started, outcomes); err != nil {
			logger.Error("failed to record run", "error", err)
		}
		rcancel()
	}

	var items []any
	if purchasable, _ := cmd.Flags().GetBool("purchasable"); purchasable {
		items = asAny(batch.Purchasable(outcomes))
		logInfo("%d purchasable medals", len(items))
	} else {
		items = asAny(outcomes)
	}
	if err := writeResults(cmd, items); err != nil {
		return err
	}
	return failIf(medalFailures(outcomes), "medal fetches")
}

func medalFailures(outcomes []batch.MedalOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Error != "" {
			n++
		}
	}
	return n
}
