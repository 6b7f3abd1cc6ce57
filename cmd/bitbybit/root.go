package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	serverURL    string
)

var rootCmd = &cobra.Command{
	Use:   "bitbybit",
	Short: "Read PDF books a section at a time",
	Long: `bitbybit turns PDF books into short sections you can read one sitting
at a time, and remembers what you have read.

  - Chapters come from the PDF outline when it has one
  - Books without an outline are split into sections by a vision model
  - Sections are marked read after a dwell time or when you reach the end
  - Progress is kept per chapter, per book and across the library`,
	Version: version.GitRelease,
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bitbybit/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "bitbybit home directory (default: ~/.bitbybit)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
