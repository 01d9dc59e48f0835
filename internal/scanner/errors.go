package scanner

import "errors"

// Scan errors. A failed Result wraps exactly one of these together with the
// underlying cause, so callers can classify it with errors.Is.
var (
	// ErrRequest is returned when no response was received: the retries were
	// exhausted or the transport error was not retryable.
	ErrRequest = errors.New("request failed")

	// ErrResponseBody is returned when a response arrived but its body could
	// not be read.
	ErrResponseBody = errors.New("failed to read response body")

	// ErrHTMLParsing is returned when the title selector cannot be built.
	ErrHTMLParsing = errors.New("failed to parse HTML")
)

// Kind classifies the outcome of a scan.
type Kind int

const (
	// KindNone means the scan succeeded.
	KindNone Kind = iota

	// KindRequest corresponds to ErrRequest.
	KindRequest

	// KindResponseBody corresponds to ErrResponseBody.
	KindResponseBody

	// KindHTMLParsing corresponds to ErrHTMLParsing.
	KindHTMLParsing

	// KindUnknown is any other error.
	KindUnknown
)

// String returns the kind name used in logs and reports.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRequest:
		return "request_error"
	case KindResponseBody:
		return "response_body_error"
	case KindHTMLParsing:
		return "html_parsing_error"
	default:
		return "unknown"
	}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRequest):
		return KindRequest
	case errors.Is(err, ErrResponseBody):
		return KindResponseBody
	case errors.Is(err, ErrHTMLParsing):
		return KindHTMLParsing
	default:
		return KindUnknown
	}
}
