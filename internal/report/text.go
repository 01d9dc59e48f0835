package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/nao1215/kirbyscan/internal/scanner"
)

// TextWriter outputs one line per result:
//
//	192.168.1.10:80/ - Status: 200 - Title: Router Login
//
// Failed scans are skipped unless WithFailures is set.
type TextWriter struct {
	baseWriter

	// showFailures prints a line for failed scans too.
	showFailures bool

	success  *color.Color
	redirect *color.Color
	client   *color.Color
	server   *color.Color
	failure  *color.Color
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithFailures prints failed scans with their error kind.
func WithFailures(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showFailures = show
	}
}

// WithColor forces colours on or off. By default colours follow
// color.NoColor, which is off when the output is not a terminal.
func WithColor(enabled bool) TextWriterOption {
	return func(w *TextWriter) {
		for _, c := range w.colors() {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		success:    color.New(color.FgGreen),
		redirect:   color.New(color.FgCyan),
		client:     color.New(color.FgYellow),
		server:     color.New(color.FgRed),
		failure:    color.New(color.FgRed, color.Bold),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteResult implements Writer.
func (w *TextWriter) WriteResult(r scanner.Result) error {
	if !r.OK() {
		if !w.showFailures {
			return nil
		}
		_, err := fmt.Fprintf(w.output, "%s - %s: %v\n",
			r.Target.String(), w.failure.Sprint("Error"), r.Err)
		return err
	}

	_, err := fmt.Fprintf(w.output, "%s - Status: %s - Title: %s\n",
		r.Target.String(), w.statusColor(r.StatusCode).Sprint(r.StatusCode), displayTitle(r))
	return err
}

// statusColor picks a colour by status class.
func (w *TextWriter) statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return w.server
	case code >= 400:
		return w.client
	case code >= 300:
		return w.redirect
	default:
		return w.success
	}
}

func (w *TextWriter) colors() []*color.Color {
	return []*color.Color{w.success, w.redirect, w.client, w.server, w.failure}
}
