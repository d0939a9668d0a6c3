package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matsen/bibfix/internal/config"
)

var configForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration",
	Long: `Inspect or create the configuration.

The config file is YAML, by default at $XDG_CONFIG_HOME/bibfix/config.yml.
BIBFIX_MAILTO, BIBFIX_THRESHOLD, BIBFIX_TIMEOUT, BIBFIX_CONCURRENCY,
BIBFIX_CACHE_PATH and BIBFIX_LOG_LEVEL override it; a .env file in the
working directory is read first.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			exitWithError(ExitConfigError, "loading config: %v", err)
		}
		if humanOutput {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			outputHuman("# %s\n%s", configPath, data)
			return nil
		}
		return outputJSON(cfg)
	},
}

// PathResponse is the response for config path.
type PathResponse struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := os.Stat(configPath)
		if humanOutput {
			outputHuman("%s\n", configPath)
			return nil
		}
		return outputJSON(PathResponse{Path: configPath, Exists: err == nil})
	},
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !configForce {
			exitWithError(ExitConfigError, "%s already exists (use --force to overwrite)", configPath)
		}
		if err := config.Default().Save(configPath); err != nil {
			exitWithError(ExitIOError, "%v", err)
		}
		if humanOutput {
			outputHuman("Wrote %s\n", configPath)
			return nil
		}
		return outputJSON(StatusResponse{Status: "created", Path: configPath})
	},
}
