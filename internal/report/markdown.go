package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/certcrawler/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeCrawl(md, report)
	w.writeSensitive(md, report)
	w.writeForms(md, report)
	w.writeResources(md, report)
	w.writeGeo(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("CertCrawler Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Seed", "`" + report.Seed + "`"},
			{"Run ID", report.RunID},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Max Depth", strconv.Itoa(report.MaxDepth)},
			{"Concurrency", strconv.Itoa(report.Concurrency)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeCrawl(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Crawl Summary")
	md.PlainText("")

	if report.Crawl == nil {
		md.PlainText("The crawl did not run.")
		md.PlainText("")
		return
	}

	s := report.Crawl.Stats
	skipped := s.SkippedDepth + s.SkippedVisited + s.SkippedFiltered
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Pages analyzed", strconv.Itoa(s.Completed)},
			{"Pages failed", strconv.Itoa(s.Failed)},
			{"Links skipped (depth)", strconv.Itoa(s.SkippedDepth)},
			{"Links skipped (already visited)", strconv.Itoa(s.SkippedVisited)},
			{"Links skipped (out of scope)", strconv.Itoa(s.SkippedFiltered)},
			{"Tasks abandoned", strconv.Itoa(s.Abandoned)},
			{"Data fetched", humanize.Bytes(uint64(max(s.BytesFetched, 0)))},
		},
	})
	md.PlainText("")

	if s.Completed+s.Failed+skipped > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Task Outcomes"),
			piechart.WithShowData(true),
		)
		if s.Completed > 0 {
			chart.LabelAndIntValue("Completed", uint64(s.Completed))
		}
		if s.Failed > 0 {
			chart.LabelAndIntValue("Failed", uint64(s.Failed))
		}
		if skipped > 0 {
			chart.LabelAndIntValue("Skipped", uint64(skipped))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	if report.Crawl.Interrupted {
		md.Note("The crawl was interrupted. Results are partial.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeSensitive(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Sensitive Paths")
	md.PlainText("")

	if report.Sensitive == nil {
		md.PlainText("Directory probing was disabled.")
		md.PlainText("")
		return
	}
	if len(report.Sensitive.Found) == 0 {
		md.Tip(fmt.Sprintf("None of the %d probed paths are exposed on %s.", report.Sensitive.Probed, report.Sensitive.Origin))
		md.PlainText("")
		return
	}

	md.Warningf("%d of %d probed paths are exposed.", len(report.Sensitive.Found), report.Sensitive.Probed)
	md.PlainText("")
	md.BulletList(report.Sensitive.Found...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeForms(md *markdown.Markdown, report *model.CrawlReport) {
	if report.Crawl == nil {
		return
	}
	md.H2("Pages With Forms")
	md.PlainText("")

	forms := report.Crawl.FormPages()
	if len(forms) == 0 {
		md.PlainText("No forms found.")
		md.PlainText("")
		return
	}
	md.BulletList(forms...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeResources(md *markdown.Markdown, report *model.CrawlReport) {
	if report.Crawl == nil || len(report.Crawl.Pages) == 0 {
		return
	}
	md.H2("Embedded Resources")
	md.PlainText("")

	title := cases.Title(language.English)
	rows := make([][]string, 0, len(model.ResourceKinds))
	for _, kind := range model.ResourceKinds {
		seen := make(map[string]struct{})
		for _, p := range report.Crawl.Pages {
			for _, src := range p.Resources[kind] {
				seen[src] = struct{}{}
			}
		}
		rows = append(rows, []string{title.String(kind.String()), strconv.Itoa(len(seen))})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Distinct sources"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeGeo(md *markdown.Markdown, report *model.CrawlReport) {
	if report.Crawl == nil || len(report.Crawl.Geo) == 0 {
		return
	}
	md.H2("Host Information")
	md.PlainText("")

	hosts := make([]string, 0, len(report.Crawl.Geo))
	for h := range report.Crawl.Geo {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	rows := make([][]string, 0, len(hosts))
	for _, h := range hosts {
		g := report.Crawl.Geo[h]
		rows = append(rows, []string{h, orDash(g.Query), orDash(g.Country), orDash(g.City), orDash(g.ISP)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "IP", "Country", "City", "ISP"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [CertCrawler](https://github.com/nao1215/certcrawler)*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
