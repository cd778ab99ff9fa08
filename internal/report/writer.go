package report

import (
	"io"

	"github.com/nao1215/certcrawler/internal/model"
)

// Writer defines the interface for crawl summary output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// Our Writer writes reports, not bytes, so io.MultiWriter does not apply.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText returns a short label for the run status.
func statusText(report *model.CrawlReport) string {
	switch report.Status {
	case model.RunInterrupted:
		return "Interrupted (partial results)"
	case model.RunAborted:
		if report.Error != "" {
			return "Aborted - " + report.Error
		}
		return "Aborted"
	default:
		return "Complete"
	}
}
