// Package geo enriches crawled hosts with IP-intelligence data
// (country, city, ISP) from an external lookup service.
//
// Lookups are memoized per host for the lifetime of an Enricher. Concurrent
// requests for the same uncached host collapse into a single outbound call.
// A failed lookup is not cached, so a later call for the same host tries again.
package geo
