package commands

import (
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent batch runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()

		repo, err := a.openStore()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := repo.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return writeResults(cmd, asAny(runs))
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntP("limit", "n", 20, "number of runs to list")
}
