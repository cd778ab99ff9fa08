// Package config holds the settings of a crawl run: defaults, command-line
// overrides, and the optional .certcrawler YAML file with per-site entries.
package config
