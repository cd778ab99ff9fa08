package config

import "strings"

// SiteConfig holds crawl settings for a single host.
type SiteConfig struct {
	// Headers are extra HTTP headers sent with every request to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the depth bound for this site. nil means not set,
	// so that 0 (seed only) can be expressed.
	Depth *int `yaml:"depth,omitempty"`

	// MaxPages overrides the page limit for this site. 0 means not set.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are glob patterns matched against the URL path.
	// Matching URLs are never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are glob patterns matched against the URL path.
	// When non-empty, only matching URLs are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// SensitivePaths replaces the built-in directory probe list.
	SensitivePaths []string `yaml:"sensitivePaths,omitempty"`
}

// File represents the structure of the .certcrawler configuration file.
type File struct {
	// Sites maps host names (without scheme) to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless the site entry overrides it.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// Host lookup is case-insensitive.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := cf.Sites[host]
	if !ok {
		for name, sc := range cf.Sites {
			if strings.EqualFold(name, host) {
				site, ok = sc, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if site.Depth != nil {
		result.Depth = site.Depth
	}
	if site.MaxPages != 0 {
		result.MaxPages = site.MaxPages
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	if len(site.SensitivePaths) > 0 {
		result.SensitivePaths = site.SensitivePaths
	}

	return result
}
