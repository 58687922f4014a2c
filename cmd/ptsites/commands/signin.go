package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ptsites/internal/batch"
	"github.com/jmylchreest/ptsites/internal/logger"
)

var signinCmd = &cobra.Command{
	Use:   "signin [site...]",
	Short: "Sign in to the configured sites",
	Long: `Sign in to every configured site, or only the sites named.

Sites whose sign-in page asks an image question are answered from the
answer cache first and from the vision model otherwise.`,
	RunE: runSignIn,
}

func init() {
	rootCmd.AddCommand(signinCmd)
	signinCmd.Flags().Bool("no-store", false, "do not record the run in the database")
}

func runSignIn(cmd *cobra.Command, args []string) error {
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
	outcomes := a.runner(a.cfg.SiteTransport()).SignIn(ctx, sites)

	if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
		repo, err := a.openStore()
		if err != nil {
			return err
		}
		rctx, rcancel := recordContext(ctx)
		if _, err := repo.RecordSignIn(rctx, started, outcomes); err != nil {
			logger.Error("failed to record run", "error", err)
		}
		rcancel()
	}

	if err := writeResults(cmd, asAny(outcomes)); err != nil {
		return err
	}
	return failIf(signInFailures(outcomes), "sign-ins")
}

func signInFailures(outcomes []batch.SignInOutcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}
