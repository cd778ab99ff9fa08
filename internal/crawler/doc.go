// Package crawler implements the traversal engine: depth-bounded,
// deduplicated, concurrent discovery of same-origin pages.
//
// # Architecture
//
// A Spider owns all crawl state. One coordinator goroutine holds the frontier
// queue, the VisitedSet and the in-flight counter; workers from a bounded
// ants pool only fetch and analyze. Because admission happens on the
// coordinator, a URL discovered by many pages at once is still dispatched
// exactly once.
//
// Each task moves through Pending -> Dispatched -> Completed or Failed, or
// Pending -> Skipped when the depth or dedup gate rejects it. The crawl ends
// when the queue is empty and nothing is in flight.
//
// # Depth
//
// The depth bound is inclusive: a task with depth <= maxDepth is dispatched.
// With the default of 3 the seed (depth 0) and three levels of links are
// fetched.
//
// # Usage
//
//	spider := crawler.NewSpider(f, a, crawler.WithMaxDepth(3), crawler.WithConcurrency(10))
//	result, err := spider.Crawl(ctx, "https://example.com")
package crawler
