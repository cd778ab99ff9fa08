package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/nao1215/certcrawler/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
// Colors follow fatih/color's own terminal detection unless disabled.
type SimpleWriter struct {
	baseWriter

	// verbose lists every page instead of a summary.
	verbose bool

	heading *color.Color
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables a per-page listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithColor forces colors on or off.
func WithColor(enabled bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		for _, c := range []*color.Color{w.heading, w.good, w.warn, w.bad} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		heading:    color.New(color.FgCyan, color.Bold),
		good:       color.New(color.FgGreen),
		warn:       color.New(color.FgYellow),
		bad:        color.New(color.FgRed, color.Bold),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeCrawl(&sb, report)
	w.writeSensitive(&sb, report)
	w.writeForms(&sb, report)
	w.writeGeo(&sb, report)
	if w.verbose {
		w.writePages(&sb, report)
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(w.heading.Sprint(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(w.heading.Sprint("                        CERTCRAWLER REPORT"))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Target:       %s\n", report.Target)
	fmt.Fprintf(sb, "Seed:         %s\n", report.Seed)
	fmt.Fprintf(sb, "Run ID:       %s\n", report.RunID)
	fmt.Fprintf(sb, "Started:      %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:      %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Max Depth:    %d\n", report.MaxDepth)

	status := statusText(report)
	switch report.Status {
	case model.RunInterrupted:
		status = w.warn.Sprint(status)
	case model.RunAborted:
		status = w.bad.Sprint(status)
	default:
		status = w.good.Sprint(status)
	}
	fmt.Fprintf(sb, "Status:       %s\n\n", status)
}

func (w *SimpleWriter) writeCrawl(sb *strings.Builder, report *model.CrawlReport) {
	if report.Crawl == nil {
		return
	}
	w.section(sb, "CRAWL")

	s := report.Crawl.Stats
	fmt.Fprintf(sb, "  Pages analyzed:   %d\n", s.Completed)
	fmt.Fprintf(sb, "  Pages failed:     %d\n", s.Failed)
	fmt.Fprintf(sb, "  Links skipped:    %d (depth %d, visited %d, out of scope %d)\n",
		s.SkippedDepth+s.SkippedVisited+s.SkippedFiltered, s.SkippedDepth, s.SkippedVisited, s.SkippedFiltered)
	if s.Abandoned > 0 {
		fmt.Fprintf(sb, "  Tasks abandoned:  %s\n", w.warn.Sprint(s.Abandoned))
	}
	fmt.Fprintf(sb, "  Data fetched:     %s\n", humanize.Bytes(uint64(max(s.BytesFetched, 0))))
	if len(report.Artifacts) > 0 {
		fmt.Fprintf(sb, "  Artifacts:        %s\n", humanize.Comma(int64(len(report.Artifacts))))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSensitive(sb *strings.Builder, report *model.CrawlReport) {
	if report.Sensitive == nil {
		return
	}
	w.section(sb, "SENSITIVE PATHS")

	if len(report.Sensitive.Found) == 0 {
		fmt.Fprintf(sb, "  %s\n\n", w.good.Sprintf("No exposed paths (%d probed)", report.Sensitive.Probed))
		return
	}
	for _, u := range report.Sensitive.Found {
		fmt.Fprintf(sb, "  %s %s\n", w.bad.Sprint("[!]"), u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeForms(sb *strings.Builder, report *model.CrawlReport) {
	if report.Crawl == nil {
		return
	}
	forms := report.Crawl.FormPages()
	if len(forms) == 0 {
		return
	}
	w.section(sb, "FORMS")
	for _, u := range forms {
		fmt.Fprintf(sb, "  %s %s\n", w.warn.Sprint("[+]"), u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeGeo(sb *strings.Builder, report *model.CrawlReport) {
	if report.Crawl == nil || len(report.Crawl.Geo) == 0 {
		return
	}
	w.section(sb, "HOSTS")

	hosts := make([]string, 0, len(report.Crawl.Geo))
	for h := range report.Crawl.Geo {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		g := report.Crawl.Geo[h]
		fmt.Fprintf(sb, "  %s  %s  %s, %s  (%s)\n", h, orDash(g.Query), orDash(g.City), orDash(g.Country), orDash(g.ISP))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	if report.Crawl == nil || len(report.Crawl.Outcomes) == 0 {
		return
	}
	w.section(sb, "PAGES")
	for _, o := range report.Crawl.Outcomes {
		mark := w.good.Sprint("ok  ")
		if o.State == model.TaskFailed {
			mark = w.bad.Sprint("fail")
		}
		fmt.Fprintf(sb, "  %s d=%d %s", mark, o.Task.Depth, o.Task.URL)
		if o.Error != "" {
			fmt.Fprintf(sb, " (%s)", o.Error)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}
