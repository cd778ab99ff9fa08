// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Colored, human-readable text for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: A Markdown document for sharing and archiving
//   - ArtifactWriter: One JSON file per scraped page
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) so that new output formats can be added
// without modifying the core data structures.
//
// Summary writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
