// Package main provides the bibfix CLI entry point.
package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matsen/bibfix/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitWithError(ExitError, "%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bibfix",
	Short: "Complete BibTeX entries from arXiv, CrossRef and DBLP",
	Long: `bibfix fixes and completes BibTeX bibliographies.

Each entry is looked up in arXiv, CrossRef and DBLP by title, DOI or arXiv id.
Missing fields are filled from the best match; existing fields are kept
unless the configuration lets a source override them. All commands output
JSON by default for easy integration with other tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if present (ignore error if not found)
		_ = godotenv.Load()
		configPath = resolveConfigPath(cmd)
	},
}

// resolveConfigPath returns the --config value, or the global config path
// when the flag was not given. It runs after .env is loaded so that an
// XDG_CONFIG_HOME set there is honored.
func resolveConfigPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Changed && f.Value.String() != "" {
		return config.ExpandPath(f.Value.String())
	}
	return config.Path()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default $XDG_CONFIG_HOME/bibfix/config.yml)")
	rootCmd.Version = Version
}
