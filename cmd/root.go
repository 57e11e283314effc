// Package cmd defines the CLI commands for the leadscout executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leadscout",
		Short: "Business discovery and contact enrichment for local prospecting.",
		Long: `leadscout finds local businesses through multiple geographic search
vendors, resolves their real websites through a web-search cascade, and
scrapes contact channels (emails, phones, social profiles) from the sites
it finds.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./leadscout.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCompareCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
