// Command livesitter runs the stream-playback daemon and its operator
// subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/livesitter/livesitter/internal/log"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "livesitter",
		Short:         "Live stream playback daemon with overlay compositing",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	root.AddCommand(
		newServeCmd(&flags),
		newStatusCmd(&flags),
		newHealthcheckCmd(),
		newSettingsCmd(&flags),
	)
	return root
}

func main() {
	log.Configure(log.Config{
		Level:   "info",
		Service: "livesitter",
		Version: version,
	})

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
