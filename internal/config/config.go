package config

import (
	"net"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "certcrawler"

	// DefaultMaxDepth is the inclusive link-hop bound from the seed.
	DefaultMaxDepth = 3

	// DefaultConcurrency is the number of pages fetched at once.
	DefaultConcurrency = 10

	// DefaultCrawlDelay is the minimum spacing between requests to one host.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 10 * time.Second

	// DefaultGracePeriod is how long in-flight fetches may finish after an interrupt.
	DefaultGracePeriod = 5 * time.Second

	// DefaultBatchSize is the number of targets crawled in parallel.
	DefaultBatchSize = 1

	// DefaultOutputDir is where per-page artifacts are written.
	DefaultOutputDir = "scraped"

	// DefaultGeoEndpoint is the IP-intelligence lookup URL; %s is the host.
	DefaultGeoEndpoint = "http://ip-api.com/json/%s"

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "certcrawler/1.0 (+https://github.com/nao1215/certcrawler)"

	// DefaultMaxBodySize limits how much of each response is read.
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// Config holds all configuration options for a crawl invocation.
// It is populated from defaults, the config file and CLI flags, in that order,
// and passed down explicitly rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable and each maps to one flag.
type Config struct {
	// Targets are the domains or URLs to crawl.
	Targets []string

	// MaxDepth is the inclusive depth bound. 0 fetches only the seed.
	MaxDepth int

	// ExplicitDepth is true when MaxDepth came from the command line and
	// must not be overridden by the configuration file.
	ExplicitDepth bool

	// Concurrency is the worker limit per target.
	Concurrency int

	// CrawlDelay is the minimum spacing between requests to the same host.
	CrawlDelay time.Duration

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// MaxPages caps the number of dispatched pages per target. 0 means unlimited.
	MaxPages int

	// Retries is the number of extra attempts after a network failure.
	Retries int

	// GracePeriod is how long in-flight fetches may finish after an interrupt.
	GracePeriod time.Duration

	// BatchSize is the number of targets crawled in parallel.
	BatchSize int

	// OutputDir is where per-page JSON artifacts are written.
	OutputDir string

	// NoGeo disables IP-intelligence lookups.
	NoGeo bool

	// NoProbe disables the sensitive directory probe.
	NoProbe bool

	// GeoEndpoint is the lookup URL template; %s is replaced by the host.
	GeoEndpoint string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize limits how much of each response is read.
	MaxBodySize int64

	// Verbose enables debug logging and per-task report lines.
	Verbose bool

	// JSONReport selects the JSON summary. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects the Markdown summary. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the summary to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is an explicit path to the YAML configuration file.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, nil if none was found.
	SiteConfigs *File

	// DBDir is the directory of the run archive.
	DBDir string

	// SaveToDB archives each run when true.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:    DefaultMaxDepth,
		Concurrency: DefaultConcurrency,
		CrawlDelay:  DefaultCrawlDelay,
		Timeout:     DefaultTimeout,
		GracePeriod: DefaultGracePeriod,
		BatchSize:   DefaultBatchSize,
		OutputDir:   DefaultOutputDir,
		GeoEndpoint: DefaultGeoEndpoint,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory, where the run archive lives.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.GracePeriod < 0 {
		return ErrInvalidGracePeriod
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.ProxyAddress != "" {
		if host, port, err := net.SplitHostPort(c.ProxyAddress); err != nil || host == "" || port == "" {
			return ErrInvalidProxyAddress
		}
	}
	return nil
}

// DepthFor returns the depth bound for host.
// An explicit --depth wins, then the site entry, then the file defaults,
// then MaxDepth.
func (c *Config) DepthFor(host string) int {
	if c.ExplicitDepth {
		return c.MaxDepth
	}
	if site := c.SiteFor(host); site.Depth != nil {
		return *site.Depth
	}
	return c.MaxDepth
}

// SiteFor returns the merged site settings for host.
// Without a configuration file it returns an empty SiteConfig.
func (c *Config) SiteFor(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}
