package model

// ResourceKind classifies a resource referenced by a page.
type ResourceKind int

const (
	// ResourceScript is a <script src> reference.
	ResourceScript ResourceKind = iota

	// ResourceStylesheet is a <link rel="stylesheet" href> reference.
	ResourceStylesheet

	// ResourceImage is an <img src> reference.
	ResourceImage

	// ResourceOther combines <source>, <video> and <audio> src references.
	ResourceOther
)

// ResourceKinds lists every kind in display order.
var ResourceKinds = []ResourceKind{
	ResourceScript,
	ResourceStylesheet,
	ResourceImage,
	ResourceOther,
}

// String returns the lower-case name of the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case ResourceScript:
		return "script"
	case ResourceStylesheet:
		return "stylesheet"
	case ResourceImage:
		return "image"
	case ResourceOther:
		return "other"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so that maps keyed by
// ResourceKind serialize with readable keys.
func (k ResourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ScrapedPage is the per-page artifact exported to disk.
// The JSON field names are part of the artifact format and must not change.
type ScrapedPage struct {
	// Title is the trimmed <title> text, empty if absent.
	Title string `json:"Title"`

	// Paragraphs holds the trimmed text of every <p>, empty strings removed.
	Paragraphs []string `json:"Paragraphs"`

	// FormActions holds the action attribute of every <form>, in document order.
	FormActions []string `json:"Form Links"`
}

// PageFindings holds everything derived from one fetched document.
// It is built purely from the FetchResult body with no side effects.
type PageFindings struct {
	// URL is the page URL.
	URL string `json:"url"`

	// Depth is the crawl depth at which the page was fetched.
	Depth int `json:"depth"`

	// HasForm is true when the page has a <form> or an <input type="text">.
	HasForm bool `json:"has_form"`

	// Resources maps each kind to its source references in document order.
	// Every kind is present; absent categories are empty slices.
	Resources map[ResourceKind][]string `json:"resources"`

	// InternalLinks are the same-origin absolute links found on the page.
	InternalLinks []string `json:"internal_links"`

	// Scraped is nil when the document could not be analyzed.
	Scraped *ScrapedPage `json:"scraped,omitempty"`

	// ContentHash is the SHA3-256 digest of the page body.
	ContentHash string `json:"content_hash,omitempty"`
}

// NewPageFindings returns findings for url with every resource kind initialized.
func NewPageFindings(url string) *PageFindings {
	resources := make(map[ResourceKind][]string, len(ResourceKinds))
	for _, kind := range ResourceKinds {
		resources[kind] = []string{}
	}
	return &PageFindings{
		URL:           url,
		Resources:     resources,
		InternalLinks: []string{},
	}
}

// ResourceCount returns the total number of resource references.
func (p *PageFindings) ResourceCount() int {
	total := 0
	for _, sources := range p.Resources {
		total += len(sources)
	}
	return total
}
