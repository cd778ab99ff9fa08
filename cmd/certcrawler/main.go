// Package main provides the entry point for the certcrawler CLI.
//
// certcrawler crawls a website from a seed URL, stays on the seed's origin,
// and reports forms, embedded resources, exposed sensitive paths and host
// information for every page it reaches within the depth bound.
//
// Usage:
//
//	certcrawler crawl example.com
//	certcrawler crawl --depth 1 https://example.com/docs/
//	certcrawler history example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
