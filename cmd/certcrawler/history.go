package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/certcrawler/internal/config"
	"github.com/nao1215/certcrawler/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show archived crawl runs",
		Long: `History lists the runs archived by 'certcrawler crawl'.

Without a target every run is listed, newest first.

Examples:
  # All runs
  certcrawler history

  # Runs for one target
  certcrawler history example.com

  # Targets that have been crawled
  certcrawler history --list-targets

  # Full JSON report of one run
  certcrawler history --run 5f0c9a4e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-targets", "L", false,
		"List all targets in the archive")
	cmd.Flags().String("run", "",
		"Print the archived JSON report of this run ID")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run archive")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listTargets, err := cmd.Flags().GetBool("list-targets")
	if err != nil {
		return err
	}
	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if errors.Is(err, database.ErrDatabaseMissing) {
		fmt.Fprintln(out, "No crawl history found.")
		fmt.Fprintln(out, "\nUse 'certcrawler crawl <target>' to crawl a site.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	switch {
	case runID != "":
		return printRunReport(ctx, out, db, runID)
	case listTargets:
		return printTargets(ctx, out, db)
	default:
		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		return printHistory(ctx, out, db, target)
	}
}

// printTargets lists every archived target.
func printTargets(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}
	if len(targets) == 0 {
		fmt.Fprintln(out, "No crawled targets found in the archive.")
		return nil
	}

	fmt.Fprintf(out, "Crawled targets (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(out, "  • %s\n", target)
	}
	fmt.Fprintln(out, "\nUse 'certcrawler history <target>' to see the runs of a target.")
	return nil
}

// printHistory lists runs, newest first.
func printHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, target string) error {
	runs, err := db.GetRunHistory(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if len(runs) == 0 {
		if target != "" {
			fmt.Fprintf(out, "No runs found for %s\n", target)
		} else {
			fmt.Fprintln(out, "No runs found.")
		}
		return nil
	}

	if target != "" {
		fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", target, len(runs))
	} else {
		fmt.Fprintf(out, "Run history (%d runs):\n\n", len(runs))
	}
	fmt.Fprintf(out, "  %-36s  %-16s  %-11s  %5s  %6s  %9s  %s\n",
		"Run ID", "Started", "Status", "Pages", "Failed", "Sensitive", "Duration")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 104))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-36s  %-16s  %-11s  %5d  %6d  %9d  %s\n",
			run.RunID,
			humanize.Time(run.StartedAt),
			run.Status,
			run.PageCount,
			run.FailedCount,
			run.SensitiveCount,
			run.Duration().Round(time.Millisecond),
		)
		if target == "" {
			fmt.Fprintf(out, "  %36s  %s\n", "", run.Seed)
		}
	}

	fmt.Fprintln(out, "\nUse 'certcrawler history --run <id>' to print the full report of a run.")
	return nil
}

// printRunReport prints the archived JSON report of one run.
func printRunReport(ctx context.Context, out io.Writer, db *database.CrawlDB, runID string) error {
	raw, err := db.GetRunReport(ctx, runID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	_, err = fmt.Fprintf(out, "%s\n", raw)
	return err
}
