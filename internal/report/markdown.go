package report

import (
	"cmp"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/kirbyscan/internal/scanner"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// ScanInfo describes the scan in the Markdown header.
type ScanInfo struct {
	Range   string
	Port    uint16
	URI     string
	Started time.Time
}

// MarkdownWriter collects results and renders a single Markdown document on
// Close: a summary, a status-class chart, and tables of responses and
// failures sorted by address.
type MarkdownWriter struct {
	baseWriter
	info    ScanInfo
	results []scanner.Result
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithScanInfo adds scan parameters to the report header.
func WithScanInfo(info ScanInfo) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.info = info
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteResult implements Writer. Nothing is written until Close.
func (w *MarkdownWriter) WriteResult(r scanner.Result) error {
	w.results = append(w.results, r)
	return nil
}

// Close renders the report.
func (w *MarkdownWriter) Close() error {
	var ok, failed []scanner.Result
	for _, r := range w.results {
		if r.OK() {
			ok = append(ok, r)
		} else {
			failed = append(failed, r)
		}
	}
	byTarget := func(a, b scanner.Result) int {
		return cmp.Or(
			compareAddress(a.Target.Address, b.Target.Address),
			cmp.Compare(a.Target.Port, b.Target.Port),
		)
	}
	slices.SortFunc(ok, byTarget)
	slices.SortFunc(failed, byTarget)

	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md)
	w.writeSummary(md, len(ok), len(failed))
	w.writeResponses(md, ok)
	w.writeFailures(md, failed)
	w.writeFooter(md)

	return md.Build()
}

// writeHeader writes the report title and the scan parameters.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown) {
	md.H1("KirbyScan Report")
	md.PlainText("")

	if w.info.Range == "" {
		return
	}

	rows := [][]string{
		{"Range", "`" + w.info.Range + "`"},
		{"Port", strconv.Itoa(int(w.info.Port))},
		{"URI", "`" + w.info.URI + "`"},
	}
	if !w.info.Started.IsZero() {
		rows = append(rows, []string{"Started", w.info.Started.Format("2006-01-02 15:04:05 MST")})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes counts, a pie chart of status classes, and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, ok, failed int) {
	md.H2("Summary")
	md.PlainText("")

	withTitle := 0
	classes := make(map[string]uint64)
	for _, r := range w.results {
		if !r.OK() {
			continue
		}
		if r.HasTitle {
			withTitle++
		}
		classes[statusClass(r.StatusCode)]++
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Targets", strconv.Itoa(ok + failed)},
			{"Responded", strconv.Itoa(ok)},
			{"With title", strconv.Itoa(withTitle)},
			{"Failed", strconv.Itoa(failed)},
		},
	})
	md.PlainText("")

	if ok > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Status Classes"),
			piechart.WithShowData(true),
		)
		for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "other"} {
			if n := classes[class]; n > 0 {
				chart.LabelAndIntValue(class, n)
			}
		}
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case ok == 0 && failed > 0:
		md.Warningf("None of the %d targets responded.", failed)
	case ok == 0:
		md.Note("No targets were scanned.")
	default:
		md.Tip(strconv.Itoa(ok) + " target(s) responded.")
	}
	md.PlainText("")
}

// writeResponses writes the table of targets that answered.
func (w *MarkdownWriter) writeResponses(md *markdown.Markdown, results []scanner.Result) {
	md.H2("Responses")
	md.PlainText("")

	if len(results) == 0 {
		md.PlainText("No responses.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		via := r.Proxy
		if via == "" {
			via = "direct"
		}
		rows[i] = []string{
			"`" + r.Target.String() + "`",
			strconv.Itoa(r.StatusCode),
			escapeCell(truncateString(displayTitle(r), 80)),
			via,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Target", "Status", "Title", "Via"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the table of failed targets, if any.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, results []scanner.Result) {
	if len(results) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			"`" + r.Target.String() + "`",
			r.Kind().String(),
			strconv.Itoa(r.Attempts),
			escapeCell(truncateString(r.Err.Error(), 80)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Target", "Kind", "Attempts", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [KirbyScan](https://github.com/nao1215/kirbyscan)*")
}

// statusClass returns "2xx", "3xx", "4xx", "5xx" or "other".
func statusClass(code int) string {
	if code < 200 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

// compareAddress orders dotted IPv4 addresses numerically, falling back to
// string order for anything else.
func compareAddress(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	if len(pa) != 4 || len(pb) != 4 {
		return strings.Compare(a, b)
	}
	for i := range pa {
		x, errX := strconv.Atoi(pa[i])
		y, errY := strconv.Atoi(pb[i])
		if errX != nil || errY != nil {
			return strings.Compare(a, b)
		}
		if c := cmp.Compare(x, y); c != 0 {
			return c
		}
	}
	return 0
}

// escapeCell keeps a value from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
