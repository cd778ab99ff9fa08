// Package pipeline runs one crawl of one target as a sequence of steps:
// crawl, probe, export and archive. StartCrawl assembles the components and
// the default pipeline; BatchProcessor runs several targets with a
// concurrency limit.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. Optional stages (probe, archive) are added or left out in one place
// 2. Every stage gets the same logging and error recording
// 3. Stages that must survive an interrupt are marked once, not special-cased
package pipeline
