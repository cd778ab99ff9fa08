// Package analyzer derives structured signals from a fetched HTML document:
// whether it accepts user input, which resources it embeds, and the text
// scraped into the per-page artifact.
package analyzer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/certcrawler/internal/model"
)

// resourceSelectors maps each resource kind to the elements and attribute
// that reference it. A selector group matches in document order.
var resourceSelectors = map[model.ResourceKind]struct {
	selector string
	attr     string
}{
	model.ResourceScript:     {"script[src]", "src"},
	model.ResourceStylesheet: {"link[rel~=stylesheet][href]", "href"},
	model.ResourceImage:      {"img[src]", "src"},
	model.ResourceOther:      {"source[src], video[src], audio[src]", "src"},
}

// formSelector matches anything that accepts typed input.
const formSelector = "form, input[type=text]"

// Analyzer builds PageFindings from HTML. It holds no per-page state and is
// safe for concurrent use.
type Analyzer struct {
	logger *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze inspects body and returns its findings. It never fails: when the
// document cannot be parsed the findings are returned with Scraped set to nil
// and every resource list empty.
func (a *Analyzer) Analyze(url, body string) *model.PageFindings {
	findings := model.NewPageFindings(url)

	doc, err := parse(body)
	if err != nil {
		a.logger.Warn("failed to analyze page", "url", url, "error", err)
		return findings
	}

	findings.HasForm = doc.Find(formSelector).Length() > 0
	for kind, rs := range resourceSelectors {
		doc.Find(rs.selector).Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(rs.attr); ok {
				findings.Resources[kind] = append(findings.Resources[kind], v)
			}
		})
	}
	findings.Scraped = scrape(doc)
	return findings
}

// parse builds a goquery document, turning a parser panic into an error so
// one hostile page cannot take down the crawl.
func parse(body string) (doc *goquery.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("html parser panic: %v", r)
		}
	}()
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// scrape extracts the artifact fields.
func scrape(doc *goquery.Document) *model.ScrapedPage {
	page := &model.ScrapedPage{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Paragraphs:  make([]string, 0),
		FormActions: make([]string, 0),
	}
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			page.Paragraphs = append(page.Paragraphs, text)
		}
	})
	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		if action, ok := s.Attr("action"); ok {
			page.FormActions = append(page.FormActions, action)
		}
	})
	return page
}
