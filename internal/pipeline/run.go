package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/certcrawler/internal/analyzer"
	"github.com/nao1215/certcrawler/internal/config"
	"github.com/nao1215/certcrawler/internal/crawler"
	"github.com/nao1215/certcrawler/internal/database"
	"github.com/nao1215/certcrawler/internal/fetcher"
	"github.com/nao1215/certcrawler/internal/geo"
	"github.com/nao1215/certcrawler/internal/model"
	"github.com/nao1215/certcrawler/internal/netclient"
	"github.com/nao1215/certcrawler/internal/probe"
)

// runSettings collects everything StartCrawl needs.
type runSettings struct {
	cfg         *config.Config
	maxDepth    *int
	concurrency int
	client      *http.Client
	db          *database.CrawlDB
	logger      *slog.Logger
}

// RunOption configures StartCrawl.
type RunOption func(*runSettings)

// WithConfig supplies the full configuration. Fields not set by other
// options are taken from it; without it config.NewConfig() is used.
func WithConfig(cfg *config.Config) RunOption {
	return func(s *runSettings) {
		s.cfg = cfg
	}
}

// WithMaxDepth sets the inclusive depth bound, overriding the config file.
func WithMaxDepth(depth int) RunOption {
	return func(s *runSettings) {
		s.maxDepth = &depth
	}
}

// WithConcurrencyLimit sets the number of pages fetched at once.
func WithConcurrencyLimit(n int) RunOption {
	return func(s *runSettings) {
		s.concurrency = n
	}
}

// WithHTTPClient replaces the client built from the configuration.
func WithHTTPClient(client *http.Client) RunOption {
	return func(s *runSettings) {
		s.client = client
	}
}

// WithDatabase archives the run in db.
func WithDatabase(db *database.CrawlDB) RunOption {
	return func(s *runSettings) {
		s.db = db
	}
}

// WithRunLogger sets the logger passed to every component.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(s *runSettings) {
		s.logger = logger
	}
}

// NormalizeTarget turns user input into a seed URL.
// Bare domains get an https:// prefix.
func NormalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if !strings.Contains(target, "://") {
		return "https://" + target
	}
	return target
}

// StartCrawl crawls target and returns the report of the run.
//
// The report is returned even when err is non-nil; its Status tells whether
// the run completed, was interrupted through ctx, or was aborted. An
// interrupted run is not an error.
func StartCrawl(ctx context.Context, target string, opts ...RunOption) (*model.CrawlReport, error) {
	s := &runSettings{}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg == nil {
		s.cfg = config.NewConfig()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	cfg := s.cfg

	rep := model.NewCrawlReport(uuid.NewString(), target)
	rep.Seed = NormalizeTarget(target)
	logger := s.logger.With("run_id", rep.RunID)

	host := ""
	if u, err := url.Parse(rep.Seed); err == nil {
		host = strings.ToLower(u.Hostname())
	}
	site := cfg.SiteFor(host)

	rep.MaxDepth = cfg.DepthFor(host)
	if s.maxDepth != nil {
		rep.MaxDepth = *s.maxDepth
	}
	rep.Concurrency = cfg.Concurrency
	if s.concurrency > 0 {
		rep.Concurrency = s.concurrency
	}

	// Site headers may carry credentials, so geo lookups get a client
	// without them.
	client, geoClient := s.client, s.client
	if client == nil {
		base := []netclient.Option{
			netclient.WithTimeout(cfg.Timeout),
			netclient.WithProxy(cfg.ProxyAddress),
			netclient.WithUserAgent(cfg.UserAgent),
		}
		nc, err := netclient.NewClient(append(base, netclient.WithHeaders(site.Headers))...)
		if err != nil {
			return abort(rep, fmt.Errorf("failed to create HTTP client: %w", err))
		}
		gc, err := netclient.NewClient(base...)
		if err != nil {
			return abort(rep, fmt.Errorf("failed to create HTTP client: %w", err))
		}
		client, geoClient = nc.HTTPClient(), gc.HTTPClient()
	}

	f := fetcher.New(client,
		fetcher.WithLimiter(fetcher.NewDomainLimiter(cfg.CrawlDelay)),
		fetcher.WithRetries(cfg.Retries),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithLogger(logger),
	)

	export := NewExportStep(cfg.OutputDir, logger)

	maxPages := cfg.MaxPages
	if maxPages == 0 {
		maxPages = site.MaxPages
	}
	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxDepth(rep.MaxDepth),
		crawler.WithConcurrency(rep.Concurrency),
		crawler.WithMaxPages(maxPages),
		crawler.WithGracePeriod(cfg.GracePeriod),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithPageHandler(export.Handler()),
	}
	if !cfg.NoGeo {
		spiderOpts = append(spiderOpts, crawler.WithEnricher(
			geo.New(geoClient, geo.WithEndpoint(cfg.GeoEndpoint), geo.WithLogger(logger)),
		))
	}

	p := New(WithLogger(logger))
	p.AddStep(NewCrawlStep(f, analyzer.New(analyzer.WithLogger(logger)),
		WithSpiderOptions(spiderOpts...),
		WithCrawlLogger(logger),
	))
	if !cfg.NoProbe {
		probeOpts := []probe.Option{probe.WithLogger(logger)}
		if len(site.SensitivePaths) > 0 {
			probeOpts = append(probeOpts, probe.WithPaths(site.SensitivePaths))
		}
		p.AddStep(NewProbeStep(probe.New(f, probeOpts...), logger))
	}
	p.AddStep(export)
	if s.db != nil {
		p.AddStep(NewArchiveStep(s.db, logger))
	}

	err := p.Execute(ctx, rep)
	if rep.FinishedAt.IsZero() {
		rep.FinishedAt = time.Now()
	}

	logger.Info("run finished",
		"target", target,
		"status", rep.Status,
		"pages", rep.PageCount(),
		"sensitive", rep.SensitiveCount(),
		"elapsed", rep.Duration().Round(time.Millisecond),
	)
	return rep, err
}

func abort(rep *model.CrawlReport, err error) (*model.CrawlReport, error) {
	rep.Status = model.RunAborted
	rep.Error = err.Error()
	rep.FinishedAt = time.Now()
	return rep, err
}
