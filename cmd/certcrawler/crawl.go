package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/certcrawler/internal/config"
	"github.com/nao1215/certcrawler/internal/database"
	applog "github.com/nao1215/certcrawler/internal/log"
	"github.com/nao1215/certcrawler/internal/model"
	"github.com/nao1215/certcrawler/internal/pipeline"
	"github.com/nao1215/certcrawler/internal/report"
)

// targetPrompt is shown when no target is given on the command line.
const targetPrompt = "Enter the domain you want to crawl (e.g., example.com): "

// errRunAborted is returned when at least one target could not be crawled.
var errRunAborted = errors.New("crawl aborted")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [domain-or-url...]",
		Short: "Crawl a website and report what it exposes",
		Long: `Crawl starts at the seed URL and follows links on the same origin up to
the depth bound. Bare domains are crawled over https.

For every page reached it records:
- Forms and their action URLs
- Scripts, stylesheets and images
- Internal links and a content hash

The origin is probed for exposed directories such as .git and backups, and the
host is looked up in an IP-intelligence service. Page text is exported as one
JSON file per page.

Press Ctrl+C to stop early. Pages already fetched are still reported.

Examples:
  # Prompt for the target
  certcrawler crawl

  # Crawl two levels below the seed
  certcrawler crawl -d 2 example.com

  # Crawl several sites, two at a time
  certcrawler crawl -b 2 example.com example.org

  # Markdown summary to a file, no archive
  certcrawler crawl --markdown --report-file report.md --no-db example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Traversal flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link hops from the seed (0 fetches only the seed)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of pages fetched at once")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between requests to the same host")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum pages per target (0 = unlimited)")
	cmd.Flags().Int("retries", 0,
		"Extra attempts after a network failure")
	cmd.Flags().Duration("grace", config.DefaultGracePeriod,
		"Time in-flight pages may finish after an interrupt")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets crawled in parallel")

	// Feature flags
	cmd.Flags().Bool("no-geo", false, "Skip the IP-intelligence lookup")
	cmd.Flags().Bool("no-probe", false, "Skip the sensitive directory probe")
	cmd.Flags().Bool("no-db", false, "Do not archive the run")
	cmd.Flags().Bool("no-banner", false, "Do not print the startup banner")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the run archive")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory for per-page JSON artifacts")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "",
		"Write the summary to this file instead of stdout")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .certcrawler in current or home directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	noBanner, err := cmd.Flags().GetBool("no-banner")
	if err != nil {
		return err
	}
	if !noBanner {
		printBanner(cmd.ErrOrStderr())
	}

	return runCrawl(ctx, cmd.OutOrStdout(), cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return false
	}
	return verbose
}

// newLogger builds the secure logger on stderr.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	jsonOutput, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonOutput = false
	}
	return applog.NewLogger(cmd.ErrOrStderr(), verbose, jsonOutput)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	cfg.ExplicitDepth = flags.Changed("depth")
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Retries, err = flags.GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.GracePeriod, err = flags.GetDuration("grace"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.NoGeo, err = flags.GetBool("no-geo"); err != nil {
		return nil, err
	}
	if cfg.NoProbe, err = flags.GetBool("no-probe"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// A missing default file is fine; a missing explicit one is not.
	if configPath := config.FindConfigFile(cfg.ConfigFilePath); configPath != "" {
		if cfg.SiteConfigs, err = config.LoadConfigFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Targets = args
	if len(cfg.Targets) == 0 {
		target, err := promptTarget(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		cfg.Targets = []string{target}
	}
	return cfg, nil
}

// promptTarget asks for a single target on in.
func promptTarget(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, targetPrompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read target: %w", err)
	}
	target := strings.TrimSpace(line)
	if target == "" {
		return "", config.ErrNoTarget
	}
	return target, nil
}

// runCrawl crawls every configured target and writes one summary per target.
func runCrawl(ctx context.Context, stdout io.Writer, cfg *config.Config, logger *slog.Logger) error {
	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	output, closeOutput, err := openReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(cfg, output)

	runOpts := []pipeline.RunOption{
		pipeline.WithConfig(cfg),
		pipeline.WithRunLogger(logger),
	}
	if db != nil {
		runOpts = append(runOpts, pipeline.WithDatabase(db))
	}

	bp := pipeline.NewBatchProcessor(
		func(ctx context.Context, target string) (*model.CrawlReport, error) {
			return pipeline.StartCrawl(ctx, target, runOpts...)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	logger.Info("starting crawl",
		"targets", len(cfg.Targets),
		"depth", cfg.MaxDepth,
		"concurrency", cfg.Concurrency,
	)
	start := time.Now()

	var (
		mu      sync.Mutex
		aborted []string
	)
	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(rep *model.CrawlReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if rep.Status == model.RunAborted {
			aborted = append(aborted, rep.Target)
		}
		if _, err := writer.Write(rep); err != nil {
			logger.Error("failed to write report", "target", rep.Target, "error", err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if ctx.Err() != nil {
		logger.Warn("crawl interrupted, partial results reported")
	}

	logger.Debug("all targets finished", "elapsed", time.Since(start).Round(time.Millisecond))

	if len(aborted) > 0 {
		return fmt.Errorf("%w: %s", errRunAborted, strings.Join(aborted, ", "))
	}
	return nil
}

// openReportOutput returns the summary destination and a function closing it.
func openReportOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return stdout, func() {}, nil
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	// Summaries list exposed paths, so the file is owner-only.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the summary format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output,
			report.WithVerbose(cfg.Verbose),
			report.WithColor(output == io.Writer(os.Stdout) && !color.NoColor),
		)
	}
}
