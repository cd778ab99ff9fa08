// Package probe checks an origin for exposed sensitive directories such as
// version-control metadata, backups and logs.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/certcrawler/internal/model"
)

// DefaultConcurrency bounds the probes in flight at once.
const DefaultConcurrency = 5

// DefaultPaths is the canonical list of candidate path segments.
var DefaultPaths = []string{
	".git", ".svn", ".hg", ".bzr", "CVS",
	"backup", "backups", "bak", "old",
	"temp", "tmp", "log", "logs",
	".env", ".DS_Store", "admin", "config",
}

// Fetcher performs one GET. The prober only looks at the status code.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *model.FetchResult
}

// Prober sweeps a fixed list of paths on an origin.
type Prober struct {
	fetcher     Fetcher
	paths       []string
	concurrency int
	logger      *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithPaths replaces the candidate list. An empty list keeps the default.
func WithPaths(paths []string) Option {
	return func(p *Prober) {
		if len(paths) > 0 {
			p.paths = paths
		}
	}
}

// WithConcurrency sets how many probes run at once.
func WithConcurrency(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = logger
	}
}

// New creates a Prober.
func New(f Fetcher, opts ...Option) *Prober {
	p := &Prober{
		fetcher:     f,
		paths:       DefaultPaths,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Paths returns the candidate list in probe order.
func (p *Prober) Paths() []string {
	return p.paths
}

// Probe requests origin + "/" + candidate for every candidate and reports the
// ones that answered exactly 200, in candidate order. A failed request counts
// as absent. Only an origin that cannot be parsed is an error.
func (p *Prober) Probe(ctx context.Context, originURL string) (*model.SensitiveDirectoryReport, error) {
	origin, err := Origin(originURL)
	if err != nil {
		return nil, err
	}

	present := make([]bool, len(p.paths))
	targets := make([]string, len(p.paths))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, candidate := range p.paths {
		targets[i] = origin + "/" + strings.TrimPrefix(candidate, "/")
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			result := p.fetcher.Fetch(ctx, targets[i])
			if result.StatusCode == http.StatusOK {
				present[i] = true
				p.logger.Warn("sensitive path exposed", "url", targets[i])
				return nil
			}
			if result.Err != nil && !model.IsFetchErrorKind(result.Err, model.FetchErrorHTTPStatus) {
				p.logger.Debug("probe failed", "url", targets[i], "error", result.Err)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // probes never return errors

	report := &model.SensitiveDirectoryReport{
		Origin: origin,
		Probed: len(p.paths),
		Found:  make([]string, 0),
	}
	for i, ok := range present {
		if ok {
			report.Found = append(report.Found, targets[i])
		}
	}
	return report, nil
}

// Origin returns scheme://host[:port] of rawURL.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q: scheme and host are required", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
