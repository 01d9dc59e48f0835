package scanner

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

// titleSelector matches the document title.
const titleSelector = "title"

// compileTitleSelector compiles titleSelector once per process.
var compileTitleSelector = sync.OnceValues(func() (cascadia.Selector, error) {
	return cascadia.Compile(titleSelector)
})

// ExtractTitle returns the text of the first <title> element in body.
//
// The body is decoded using the charset from contentType or from a <meta>
// declaration, falling back to UTF-8. The title is the element's text, not
// its raw markup: entities are decoded, the result is NFC-normalised, runs of
// whitespace become one space and control characters are dropped, so a title
// always prints as a single line without terminal escape sequences.
//
// The boolean is false when the document has no title or cannot be parsed
// at all; neither case is an error. The only error is a selector that fails
// to compile, wrapped in ErrHTMLParsing.
func ExtractTitle(body []byte, contentType string) (string, bool, error) {
	sel, err := compileTitleSelector()
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrHTMLParsing, err)
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		reader = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return "", false, nil
	}

	title := doc.FindMatcher(sel).First()
	if title.Length() == 0 {
		return "", false, nil
	}

	return norm.NFC.String(cleanTitle(title.Text())), true, nil
}

// cleanTitle joins s into one line and removes control characters.
func cleanTitle(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
