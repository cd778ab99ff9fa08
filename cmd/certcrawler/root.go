package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for certcrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certcrawler",
		Short: "Same-origin web crawler and exposure checker",
		Long: `certcrawler crawls a website from a seed URL up to a bounded depth.

Every page on the seed's origin is fetched once, analyzed for forms, scripts,
stylesheets and images, and exported as a JSON artifact. The origin is probed
for exposed sensitive directories, and the host is enriched with an
IP-intelligence lookup.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write log lines as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
