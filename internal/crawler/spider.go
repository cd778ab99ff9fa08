package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/certcrawler/internal/model"
)

const (
	// DefaultMaxDepth is the inclusive depth bound.
	DefaultMaxDepth = 3

	// DefaultConcurrency is the number of pages processed at once.
	DefaultConcurrency = 10

	// DefaultGracePeriod is how long in-flight pages may run after an interrupt.
	DefaultGracePeriod = 5 * time.Second
)

// PageFetcher retrieves one page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) *model.FetchResult
}

// PageAnalyzer derives findings from a fetched document.
type PageAnalyzer interface {
	Analyze(url, body string) *model.PageFindings
}

// HostEnricher looks up information about a host.
type HostEnricher interface {
	Enrich(ctx context.Context, host string) (*model.GeoRecord, error)
}

// PageHandler is called for every successfully analyzed page.
// It runs on the coordinator goroutine, so calls are never concurrent.
type PageHandler func(page *model.PageFindings)

// Spider crawls the pages of one origin.
//
// A Spider holds configuration only and may run several crawls, one after
// another or in parallel. All per-crawl state lives in a crawlState owned by
// the coordinator goroutine of that crawl.
type Spider struct {
	fetcher  PageFetcher
	analyzer PageAnalyzer
	enricher HostEnricher

	// maxDepth is inclusive: 0 crawls only the seed.
	maxDepth int

	// concurrency bounds the pages being fetched or analyzed at once.
	concurrency int

	// maxPages caps dispatched tasks. 0 means unlimited.
	maxPages int

	// grace is how long in-flight tasks may finish after cancellation.
	grace time.Duration

	filter      pathFilter
	pageHandler PageHandler
	logger      *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the inclusive depth bound.
// 0 = only the seed, 1 = the seed plus the pages it links to, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithConcurrency sets the worker pool size.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		s.concurrency = n
	}
}

// WithMaxPages caps the number of dispatched pages. 0 disables the cap.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithGracePeriod sets how long in-flight pages may finish after the crawl
// context is cancelled.
func WithGracePeriod(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.grace = d
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.filter.ignore = patterns
	}
}

// WithFollowPatterns restricts crawling to URL paths matching at least one
// pattern. An empty slice allows every path.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.filter.follow = patterns
	}
}

// WithEnricher enables host enrichment for every fetched page.
func WithEnricher(e HostEnricher) SpiderOption {
	return func(s *Spider) {
		s.enricher = e
	}
}

// WithPageHandler registers a callback for analyzed pages.
func WithPageHandler(h PageHandler) SpiderOption {
	return func(s *Spider) {
		s.pageHandler = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that fetches with f and analyzes with a.
func NewSpider(f PageFetcher, a PageAnalyzer, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:     f,
		analyzer:    a,
		maxDepth:    DefaultMaxDepth,
		concurrency: DefaultConcurrency,
		grace:       DefaultGracePeriod,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// crawlState is everything one crawl mutates. Only the coordinator
// goroutine touches it.
type crawlState struct {
	result   *model.CrawlResult
	visited  *VisitedSet
	hosts    map[string]struct{}
	queue    []model.CrawlTask
	inFlight int
	done     chan taskResult
}

// taskResult is what a worker hands back to the coordinator.
type taskResult struct {
	task     model.CrawlTask
	fetch    *model.FetchResult
	findings *model.PageFindings
	links    []string
	geo      *model.GeoRecord
}

// Crawl traverses the origin of seedURL and returns what it found.
//
// Fetch failures are recorded as Failed outcomes and never returned as an
// error. When ctx is cancelled no new task is dispatched, in-flight tasks get
// the grace period to finish, and the partial result is returned with
// Interrupted set. The only errors are an unusable seed and a worker pool
// that cannot be created.
func (s *Spider) Crawl(ctx context.Context, seedURL string) (*model.CrawlResult, error) {
	seed, err := parseSeed(seedURL)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(s.concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	// Workers outlive ctx by up to the grace period.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	st := &crawlState{
		result:  model.NewCrawlResult(seed, s.maxDepth),
		visited: NewVisitedSet(),
		hosts:   map[string]struct{}{hostKey(seed): {}},
		queue:   []model.CrawlTask{{URL: seed, Depth: 0}},
		done:    make(chan taskResult, s.concurrency),
	}

	s.logger.Info("crawl started",
		"seed", seed,
		"max_depth", s.maxDepth,
		"concurrency", s.concurrency,
	)
	start := time.Now()

	for ctx.Err() == nil {
		s.dispatch(workCtx, pool, st)
		if st.inFlight == 0 {
			break
		}
		select {
		case r := <-st.done:
			st.inFlight--
			s.record(st, r, true)
		case <-ctx.Done():
		}
	}

	if ctx.Err() != nil {
		st.result.Interrupted = true
		st.result.Stats.Abandoned += s.admissible(st)
		st.queue = nil
		s.drain(st, cancelWork)
	}

	stats := st.result.Stats
	s.logger.Info("crawl finished",
		"seed", seed,
		"pages", stats.Completed,
		"failed", stats.Failed,
		"skipped", stats.SkippedDepth+stats.SkippedVisited+stats.SkippedFiltered,
		"interrupted", st.result.Interrupted,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return st.result, nil
}

// dispatch admits queued tasks and submits them until the pool is full
// or the queue is empty.
func (s *Spider) dispatch(ctx context.Context, pool *ants.Pool, st *crawlState) {
	for len(st.queue) > 0 && st.inFlight < s.concurrency {
		task := st.queue[0]
		st.queue = st.queue[1:]
		if !s.admit(st, task) {
			continue
		}

		st.inFlight++
		st.result.Stats.Dispatched++
		s.logger.Debug("dispatching page", "url", task.URL, "depth", task.Depth)

		done := st.done
		if err := pool.Submit(func() { done <- s.process(ctx, task) }); err != nil {
			st.inFlight--
			st.result.Stats.Failed++
			st.result.Outcomes = append(st.result.Outcomes, model.TaskOutcome{
				Task:  task,
				State: model.TaskFailed,
				Error: fmt.Sprintf("failed to submit task: %v", err),
			})
		}
	}
}

// admit is the gate between Pending and Dispatched.
// The visited check comes last so that a URL rejected for depth can still be
// admitted later if it is rediscovered at a shallower depth.
func (s *Spider) admit(st *crawlState, task model.CrawlTask) bool {
	stats := &st.result.Stats
	if task.Depth > s.maxDepth {
		stats.SkippedDepth++
		return false
	}
	if task.Depth > 0 && !s.inScope(st, task.URL) {
		stats.SkippedFiltered++
		return false
	}
	if s.maxPages > 0 && stats.Dispatched >= s.maxPages {
		stats.SkippedFiltered++
		return false
	}
	if !st.visited.Add(task.URL) {
		stats.SkippedVisited++
		return false
	}
	return true
}

// admissible counts the distinct queued tasks that admit would still let
// through, without marking any of them visited.
func (s *Spider) admissible(st *crawlState) int {
	budget := -1
	if s.maxPages > 0 {
		budget = max(s.maxPages-st.result.Stats.Dispatched, 0)
	}
	seen := make(map[string]struct{}, len(st.queue))
	n := 0
	for _, task := range st.queue {
		if budget >= 0 && n >= budget {
			break
		}
		if task.Depth > s.maxDepth || (task.Depth > 0 && !s.inScope(st, task.URL)) {
			continue
		}
		if _, dup := seen[task.URL]; dup || st.visited.Contains(task.URL) {
			continue
		}
		seen[task.URL] = struct{}{}
		n++
	}
	return n
}

func (s *Spider) inScope(st *crawlState, taskURL string) bool {
	if _, ok := st.hosts[hostKey(taskURL)]; !ok {
		return false
	}
	return s.filter.allows(taskURL)
}

// process runs on a worker: fetch, then extract links, analyze and enrich
// concurrently.
func (s *Spider) process(ctx context.Context, task model.CrawlTask) taskResult {
	r := taskResult{task: task}
	r.fetch = s.fetcher.Fetch(ctx, task.URL)
	if !r.fetch.OK() {
		return r
	}

	body := r.fetch.Body
	base := r.fetch.BaseURL()

	var g errgroup.Group
	g.Go(func() error {
		links, err := ExtractLinks(base, strings.NewReader(body))
		if err != nil {
			s.logger.Debug("link extraction failed", "url", task.URL, "error", err)
		}
		r.links = links
		return nil
	})
	g.Go(func() error {
		r.findings = s.analyzer.Analyze(task.URL, body)
		return nil
	})
	if s.enricher != nil {
		g.Go(func() error {
			host := hostname(base)
			rec, err := s.enricher.Enrich(ctx, host)
			if err != nil {
				s.logger.Warn("geo lookup failed", "host", host, "error", err)
				return nil
			}
			r.geo = rec
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // the goroutines above never return errors

	if r.findings == nil {
		r.findings = model.NewPageFindings(task.URL)
	}
	r.findings.Depth = task.Depth
	r.findings.ContentHash = r.fetch.Hash()
	if r.links != nil {
		r.findings.InternalLinks = r.links
	}
	return r
}

// record applies a finished task to the crawl state. Children are enqueued
// only when expand is true, which is false once the crawl is interrupted.
func (s *Spider) record(st *crawlState, r taskResult, expand bool) {
	res := st.result
	outcome := model.TaskOutcome{Task: r.task, StatusCode: r.fetch.StatusCode}

	if !r.fetch.OK() {
		outcome.State = model.TaskFailed
		if r.fetch.Err != nil {
			outcome.Error = r.fetch.Err.Error()
		}
		res.Stats.Failed++
		res.Outcomes = append(res.Outcomes, outcome)
		if model.IsFetchErrorKind(r.fetch.Err, model.FetchErrorHTTPStatus) {
			s.logger.Debug("page not available", "url", r.task.URL, "status", r.fetch.StatusCode)
		} else {
			s.logger.Warn("page fetch failed", "url", r.task.URL, "error", r.fetch.Err)
		}
		return
	}

	outcome.State = model.TaskCompleted
	res.Stats.Completed++
	res.Stats.BytesFetched += int64(len(r.fetch.Body))
	res.Outcomes = append(res.Outcomes, outcome)
	res.Pages = append(res.Pages, r.findings)
	if r.geo != nil {
		res.Geo[r.geo.Host] = r.geo
	}

	if r.findings.HasForm {
		s.logger.Info("form found", "url", r.task.URL)
	}

	// A seed that redirects to another host (for example to www.) moves
	// the crawl scope along with it.
	if r.task.Depth == 0 {
		st.hosts[hostKey(r.fetch.BaseURL())] = struct{}{}
	}

	if s.pageHandler != nil {
		s.pageHandler(r.findings)
	}

	if !expand {
		return
	}
	for _, link := range r.links {
		st.queue = append(st.queue, model.CrawlTask{
			URL:   normalizeURL(link),
			Depth: r.task.Depth + 1,
		})
	}
}

// drain waits up to the grace period for in-flight tasks, then abandons them.
func (s *Spider) drain(st *crawlState, cancelWork context.CancelFunc) {
	if st.inFlight == 0 {
		return
	}
	s.logger.Warn("crawl interrupted, waiting for in-flight pages",
		"in_flight", st.inFlight,
		"grace", s.grace,
	)

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	for st.inFlight > 0 {
		select {
		case r := <-st.done:
			st.inFlight--
			s.record(st, r, false)
		case <-timer.C:
			cancelWork()
			s.logger.Warn("abandoning in-flight pages", "count", st.inFlight)
			st.result.Stats.Abandoned += st.inFlight
			st.inFlight = 0
		}
	}
}

// parseSeed validates the seed and returns its normalized form.
func parseSeed(seedURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(seedURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeed, seedURL)
	}
	return normalizeURL(u.String()), nil
}

// hostKey returns the lower-cased host (with port) of rawURL.
func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// hostname returns the host of rawURL without the port.
func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
