package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/kirbyscan/internal/scanner"
)

// JSONWriter outputs one JSON object per line for every result, failures
// included.
type JSONWriter struct {
	baseWriter
	encoder *json.Encoder
}

// JSONResult is the JSON form of a scanner.Result.
type JSONResult struct {
	Address    string `json:"address"`
	Port       uint16 `json:"port"`
	URI        string `json:"uri"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`

	// Title is nil when the page has no <title>.
	Title *string `json:"title"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Proxy     string `json:"proxy,omitempty"`
	Attempts  int    `json:"attempts"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// NewJSONResult converts r.
func NewJSONResult(r scanner.Result) JSONResult {
	out := JSONResult{
		Address:    r.Target.Address,
		Port:       r.Target.Port,
		URI:        r.Target.URI,
		URL:        r.Target.URL(),
		StatusCode: r.StatusCode,
		Proxy:      r.Proxy,
		Attempts:   r.Attempts,
		ElapsedMS:  r.Elapsed.Milliseconds(),
	}
	if r.HasTitle {
		title := r.Title
		out.Title = &title
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
		out.ErrorKind = r.Kind().String()
	}
	return out
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	encoder := json.NewEncoder(output)
	encoder.SetEscapeHTML(false)

	return &JSONWriter{
		baseWriter: newBaseWriter(output),
		encoder:    encoder,
	}
}

// WriteResult implements Writer.
func (w *JSONWriter) WriteResult(r scanner.Result) error {
	return w.encoder.Encode(NewJSONResult(r))
}
