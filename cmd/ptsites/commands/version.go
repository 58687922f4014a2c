package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/ptsites/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeResults(cmd, []any{version.Get()})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version.String()
}
