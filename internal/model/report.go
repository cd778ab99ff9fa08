package model

import (
	"encoding/json"
	"sort"
	"time"
)

// SensitiveDirectoryReport lists the probed paths that answered 200,
// in the order of the probe list.
type SensitiveDirectoryReport struct {
	// Origin is the scheme://host[:port] that was probed.
	Origin string `json:"origin"`

	// Probed is the number of candidate paths requested.
	Probed int `json:"probed"`

	// Found holds the full URLs that responded with status 200.
	Found []string `json:"found"`
}

// GeoRecord is an IP-intelligence lookup result for one host.
// Raw keeps the complete payload; the named fields are copied out of it
// for display when the service provides them.
type GeoRecord struct {
	// Host is the lookup key.
	Host string `json:"host"`

	// Raw is the verbatim JSON payload returned by the lookup service.
	Raw json.RawMessage `json:"raw"`

	// Query is the IP address the service resolved the host to.
	Query string `json:"query,omitempty"`

	// Country is the country name.
	Country string `json:"country,omitempty"`

	// City is the city name.
	City string `json:"city,omitempty"`

	// ISP is the internet service provider.
	ISP string `json:"isp,omitempty"`
}

// CrawlStats summarizes task accounting for a crawl.
type CrawlStats struct {
	// Dispatched is the number of tasks handed to workers.
	Dispatched int `json:"dispatched"`

	// Completed is the number of tasks whose page was fetched and analyzed.
	Completed int `json:"completed"`

	// Failed is the number of tasks whose fetch failed.
	Failed int `json:"failed"`

	// SkippedDepth counts discoveries rejected because they were too deep.
	SkippedDepth int `json:"skipped_depth"`

	// SkippedVisited counts discoveries rejected because they were already seen.
	SkippedVisited int `json:"skipped_visited"`

	// SkippedFiltered counts discoveries rejected by ignore/follow patterns
	// or the page limit.
	SkippedFiltered int `json:"skipped_filtered"`

	// Abandoned counts tasks dropped because the crawl was interrupted:
	// in-flight tasks cut off after the grace period plus distinct queued
	// tasks that would still have been admitted.
	Abandoned int `json:"abandoned"`

	// BytesFetched is the total size of all analyzed bodies.
	BytesFetched int64 `json:"bytes_fetched"`
}

// CrawlResult is what the traversal engine returns.
type CrawlResult struct {
	// Seed is the normalized start URL.
	Seed string `json:"seed"`

	// MaxDepth is the inclusive depth bound used.
	MaxDepth int `json:"max_depth"`

	// Outcomes has one entry per dispatched task, in completion order.
	Outcomes []TaskOutcome `json:"outcomes"`

	// Pages holds findings for every successfully fetched page.
	Pages []*PageFindings `json:"pages"`

	// Geo holds the memoized lookups made during the crawl, keyed by host.
	Geo map[string]*GeoRecord `json:"geo,omitempty"`

	// Interrupted is true when the crawl stopped before the frontier drained.
	Interrupted bool `json:"interrupted"`

	// Stats is the task accounting summary.
	Stats CrawlStats `json:"stats"`
}

// NewCrawlResult returns an empty result for the given seed.
func NewCrawlResult(seed string, maxDepth int) *CrawlResult {
	return &CrawlResult{
		Seed:     seed,
		MaxDepth: maxDepth,
		Outcomes: make([]TaskOutcome, 0),
		Pages:    make([]*PageFindings, 0),
		Geo:      make(map[string]*GeoRecord),
	}
}

// DispatchedURLs returns the sorted URLs of every dispatched task.
func (r *CrawlResult) DispatchedURLs() []string {
	urls := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		urls = append(urls, o.Task.URL)
	}
	sort.Strings(urls)
	return urls
}

// FormPages returns the URLs of pages where a form was detected.
func (r *CrawlResult) FormPages() []string {
	urls := make([]string, 0)
	for _, p := range r.Pages {
		if p.HasForm {
			urls = append(urls, p.URL)
		}
	}
	return urls
}

// RunStatus distinguishes how a crawl run ended.
type RunStatus string

const (
	// RunCompleted means the frontier drained normally.
	RunCompleted RunStatus = "completed"

	// RunInterrupted means the user cancelled the run; partial results are valid.
	RunInterrupted RunStatus = "interrupted"

	// RunAborted means the run could not proceed (for example an invalid seed).
	RunAborted RunStatus = "aborted"
)

// CrawlReport is the complete result of one crawl run against one target.
//
// Design decision: The report aggregates the output of every pipeline step
// rather than having each step return its own value because:
//  1. Steps can be added or reordered without changing signatures
//  2. Partial results survive when a later step fails
//  3. The whole run serializes to a single JSON document for the archive
type CrawlReport struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// Target is the user-supplied domain or URL.
	Target string `json:"target"`

	// Seed is the normalized start URL.
	Seed string `json:"seed"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended.
	FinishedAt time.Time `json:"finished_at"`

	// MaxDepth is the inclusive depth bound.
	MaxDepth int `json:"max_depth"`

	// Concurrency is the worker limit used.
	Concurrency int `json:"concurrency"`

	// Crawl is the traversal result, nil if the crawl step did not run.
	Crawl *CrawlResult `json:"crawl,omitempty"`

	// Sensitive is the directory probe result, nil if probing was disabled.
	Sensitive *SensitiveDirectoryReport `json:"sensitive,omitempty"`

	// Artifacts lists the per-page JSON files written.
	Artifacts []string `json:"artifacts,omitempty"`

	// Status is how the run ended.
	Status RunStatus `json:"status"`

	// Error is the message of the error that aborted the run, if any.
	Error string `json:"error,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps"`
}

// NewCrawlReport creates a report for target with the given run ID.
func NewCrawlReport(runID, target string) *CrawlReport {
	return &CrawlReport{
		RunID:          runID,
		Target:         target,
		StartedAt:      time.Now(),
		Status:         RunCompleted,
		PerformedSteps: make([]string, 0),
	}
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PageCount returns the number of successfully analyzed pages.
func (r *CrawlReport) PageCount() int {
	if r.Crawl == nil {
		return 0
	}
	return len(r.Crawl.Pages)
}

// SensitiveCount returns the number of exposed sensitive paths.
func (r *CrawlReport) SensitiveCount() int {
	if r.Sensitive == nil {
		return 0
	}
	return len(r.Sensitive.Found)
}
