// Package netclient builds the outbound HTTP clients used by certcrawler.
//
// Every component that talks to the network (the page fetcher, the directory
// prober and the geo enricher) obtains its *http.Client here so that the
// transport settings, redirect cap, default headers and optional SOCKS5 proxy
// are applied consistently.
package netclient
