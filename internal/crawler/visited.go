package crawler

import (
	"net/url"
	"strings"

	mapset "github.com/deckarep/golang-set"
)

// VisitedSet records every URL admitted for dispatch during one crawl.
// It only grows. Add is an atomic check-and-insert, so concurrent
// discoverers of the same URL cannot both win.
type VisitedSet struct {
	set mapset.Set
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{set: mapset.NewSet()}
}

// Add inserts the normalized form of rawURL and reports whether it was new.
func (v *VisitedSet) Add(rawURL string) bool {
	return v.set.Add(normalizeURL(rawURL))
}

// Contains reports whether rawURL has already been admitted.
func (v *VisitedSet) Contains(rawURL string) bool {
	return v.set.Contains(normalizeURL(rawURL))
}

// Len returns the number of distinct URLs admitted.
func (v *VisitedSet) Len() int {
	return v.set.Cardinality()
}

// normalizeURL normalizes a URL for deduplication: lower-case scheme and
// host, no fragment, and "/" for an empty path.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
