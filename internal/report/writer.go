package report

import (
	"errors"
	"io"

	"github.com/nao1215/kirbyscan/internal/scanner"
)

// Writer defines the interface for result output.
type Writer interface {
	// WriteResult outputs a single scan result.
	WriteResult(result scanner.Result) error

	// Close flushes anything buffered. It does not close the underlying
	// io.Writer, which stays owned by the caller.
	Close() error
}

// MultiWriter writes to multiple Writers, e.g. the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteResult outputs the result to every Writer, even when some of them
// fail, and joins their errors.
func (m *MultiWriter) WriteResult(result scanner.Result) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.WriteResult(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every Writer, even when some of them fail.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Close implements Writer for writers that buffer nothing.
func (baseWriter) Close() error {
	return nil
}

// displayTitle returns the title as shown to users.
func displayTitle(r scanner.Result) string {
	if !r.HasTitle {
		return "No title"
	}
	return r.Title
}
