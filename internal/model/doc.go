// Package model defines the core data structures used throughout certcrawler.
//
// This package contains the following main types:
//   - CrawlTask: A URL and depth pair consumed once by the traversal engine
//   - FetchResult: The immutable outcome of a single GET request
//   - PageFindings: Signals extracted from a fetched HTML document
//   - SensitiveDirectoryReport: Exposed paths found by the directory prober
//   - GeoRecord: A memoized IP-intelligence lookup for a host
//   - CrawlReport: The result of one complete crawl run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The fetcher, crawler, analyzer, report and database packages
// all exchange these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// archive storage.
package model
