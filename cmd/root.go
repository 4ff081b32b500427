package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var flagConfigPath string

var rootCmd = &cobra.Command{
	Use:   "contextd",
	Short: "Local-first semantic search daemon for your filesystem",
}

// Execute runs the root command, mapping sentinel errors from cmd/
// subcommands to exit codes: 1 config error, 2 model load failure, 3
// store open failure, 1 for anything else.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch err.(type) {
	case *configError:
		return 1
	case *modelError:
		return 2
	case *storeError:
		return 3
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "contextd.toml", "path to the TOML configuration file")
}
