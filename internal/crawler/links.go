package crawler

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// nonNavigablePrefixes are href schemes that never lead to a crawlable page.
var nonNavigablePrefixes = []string{"javascript:", "mailto:", "tel:", "data:"}

// ExtractLinks returns the set of same-host links found in the anchors of body.
//
// Every <a href> is resolved against baseURL. A link is kept when it resolves
// to an absolute URL whose host equals the base host exactly. Fragments are
// removed from kept links and fragment-only hrefs are dropped, since they point
// back at the page itself. The result is sorted and contains no duplicates.
//
// The HTML parser is lenient, so malformed markup does not cause an error;
// only a read failure or an unusable base URL does.
func ExtractLinks(baseURL string, body io.Reader) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	seen := make(map[string]struct{})
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if link, ok := resolveInternal(base, getAttr(n, "href")); ok {
				seen[link] = struct{}{}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links, nil
}

// resolveInternal resolves href against base and reports whether the result
// is a navigable link on the same host.
func resolveInternal(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, prefix := range nonNavigablePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme == "" || resolved.Host != base.Host {
		return "", false
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), true
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
