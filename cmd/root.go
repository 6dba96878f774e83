// Package cmd defines the CLI commands for the understat-crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "understat-crawler",
		Short: "Crawls understat.com and archives its embedded match data.",
		Long: `understat-crawler walks the league, team, player, and match pages of
an understat-style statistics site, extracts the JSON each page embeds in
its script tags, and stores one blob per page keyed by the page's identity.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
