package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/certcrawler/internal/crawler"
	"github.com/nao1215/certcrawler/internal/database"
	"github.com/nao1215/certcrawler/internal/model"
	"github.com/nao1215/certcrawler/internal/probe"
	"github.com/nao1215/certcrawler/internal/report"
)

// CrawlStep runs the traversal engine from the report's seed.
type CrawlStep struct {
	fetcher  crawler.PageFetcher
	analyzer crawler.PageAnalyzer
	opts     []crawler.SpiderOption
	logger   *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithSpiderOptions passes options through to the Spider.
func WithSpiderOptions(opts ...crawler.SpiderOption) CrawlStepOption {
	return func(s *CrawlStep) {
		s.opts = append(s.opts, opts...)
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step using f to fetch and a to analyze pages.
func NewCrawlStep(f crawler.PageFetcher, a crawler.PageAnalyzer, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		fetcher:  f,
		analyzer: a,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls report.Seed and stores the result.
// Only an unusable seed is an error; page failures are recorded as outcomes.
func (s *CrawlStep) Do(ctx context.Context, rep *model.CrawlReport) error {
	opts := append([]crawler.SpiderOption{crawler.WithLogger(s.logger)}, s.opts...)
	spider := crawler.NewSpider(s.fetcher, s.analyzer, opts...)

	result, err := spider.Crawl(ctx, rep.Seed)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", rep.Seed, err)
	}

	rep.Crawl = result
	rep.Seed = result.Seed
	rep.MaxDepth = result.MaxDepth
	if result.Interrupted {
		rep.Status = model.RunInterrupted
	}
	return nil
}

// ProbeStep checks the seed's origin for exposed sensitive paths.
type ProbeStep struct {
	prober *probe.Prober
	logger *slog.Logger
}

// NewProbeStep creates a probe step.
func NewProbeStep(prober *probe.Prober, logger *slog.Logger) *ProbeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProbeStep{prober: prober, logger: logger}
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return "probe"
}

// Do probes the origin of report.Seed. Probe requests that fail count as
// absent, so only an unusable seed is an error.
func (s *ProbeStep) Do(ctx context.Context, rep *model.CrawlReport) error {
	result, err := s.prober.Probe(ctx, rep.Seed)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	rep.Sensitive = result

	if len(result.Found) > 0 {
		s.logger.Warn("sensitive paths exposed", "origin", result.Origin, "count", len(result.Found))
	}
	return nil
}

// ExportStep writes one JSON artifact per scraped page.
// Pages are written as the crawl produces them through Handler; Do only
// records the resulting file list, so it also covers interrupted runs.
type ExportStep struct {
	writer *report.ArtifactWriter
	logger *slog.Logger
	failed int
}

// NewExportStep creates an export step writing into dir.
func NewExportStep(dir string, logger *slog.Logger) *ExportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportStep{writer: report.NewArtifactWriter(dir), logger: logger}
}

// Handler returns the page callback to register on the Spider.
// The Spider calls it from a single goroutine.
func (s *ExportStep) Handler() crawler.PageHandler {
	return func(page *model.PageFindings) {
		path, err := s.writer.Write(page)
		if err != nil {
			s.failed++
			s.logger.Warn("failed to write artifact", "url", page.URL, "error", err)
			return
		}
		if path != "" {
			s.logger.Debug("artifact written", "url", page.URL, "path", path)
		}
	}
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Finalize marks the step as running after interrupts.
func (s *ExportStep) Finalize() bool {
	return true
}

// Do records the written artifacts in the report.
func (s *ExportStep) Do(_ context.Context, rep *model.CrawlReport) error {
	rep.Artifacts = s.writer.Written()
	if len(rep.Artifacts) > 0 || s.failed > 0 {
		s.logger.Info("artifacts exported",
			"dir", s.writer.Dir(),
			"written", len(rep.Artifacts),
			"failed", s.failed,
		)
	}
	return nil
}

// ArchiveStep stores the finished run in the history database.
type ArchiveStep struct {
	db     *database.CrawlDB
	logger *slog.Logger
}

// NewArchiveStep creates an archive step.
func NewArchiveStep(db *database.CrawlDB, logger *slog.Logger) *ArchiveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *ArchiveStep) Name() string {
	return "archive"
}

// Finalize marks the step as running after interrupts and failures.
func (s *ArchiveStep) Finalize() bool {
	return true
}

// Do saves the report. The write is not tied to ctx so that an interrupted
// run is still archived. A failed write is logged and leaves the run status
// unchanged.
func (s *ArchiveStep) Do(ctx context.Context, rep *model.CrawlReport) error {
	if rep.FinishedAt.IsZero() {
		rep.FinishedAt = time.Now()
	}
	if err := s.db.SaveRun(context.WithoutCancel(ctx), rep); err != nil {
		s.logger.Error("failed to archive run", "run_id", rep.RunID, "error", err)
		return nil
	}
	s.logger.Debug("run archived", "run_id", rep.RunID, "db", s.db.Path())
	return nil
}
