// Package commands implements the CLI commands for ptsites.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/ptsites/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "ptsites",
	Short: "Sign-in, medal and registration automation for private trackers",
	Long: `ptsites signs in to private tracker sites, scrapes their medal shops
and checks whether they accept new registrations.

Sites are listed in the config file ($HOME/.ptsites.yaml):

  sites:
    - name: tjupt
      url: https://www.tjupt.org/
      cookie: "c_secure_uid=...; c_secure_pass=..."
  vision:
    base_url: https://api.openai.com
    api_key: sk-...

Examples:
  # Sign in to every configured site
  ptsites signin

  # List medals that can be bought right now, as JSON
  ptsites medals --purchasable -f json

  # Check which sites have open registration
  ptsites opencheck

  # Run everything on the configured cron schedules
  ptsites serve`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.ptsites.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format: text, json, jsonl, yaml")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	config.LoadDotEnv(".env.local", ".env")

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".ptsites")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. PTSITES_VISION_API_KEY
	viper.SetEnvPrefix("PTSITES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
