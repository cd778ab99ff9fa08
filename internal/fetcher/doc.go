// Package fetcher performs the single HTTP GET behind every crawled page.
//
// A Fetch never returns a Go error. Every outcome, including transport
// failures, non-200 statuses and cancellation, is described by the returned
// model.FetchResult so that the traversal engine can record it as a task
// outcome and move on.
//
// Requests to the same host are spaced by a DomainLimiter. The limiter is
// shared between the page fetcher and the directory prober so that the
// politeness delay covers all traffic to an origin.
package fetcher
