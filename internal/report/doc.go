// Package report writes scan results.
//
// This package contains writers for different output formats:
//   - TextWriter: one coloured line per result for terminal display
//   - JSONWriter: JSON lines for tool integration
//   - MarkdownWriter: a summary and results table, rendered on Close
//
// Writers implement the Writer interface and can be combined with
// MultiWriter. A Writer is not safe for concurrent use; the batch processor
// serialises its callback, which is where results are written.
package report
