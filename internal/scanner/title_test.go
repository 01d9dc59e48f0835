package scanner

import (
	"testing"
)

func TestExtractTitle(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		body        string
		contentType string
		title       string
		found       bool
	}{
		{
			name:  "simple title",
			body:  "<html><head><title>Hello</title></head></html>",
			title: "Hello",
			found: true,
		},
		{
			name:  "whitespace is trimmed",
			body:  "<html><head><title>\n   Admin Panel \t</title></head></html>",
			title: "Admin Panel",
			found: true,
		},
		{
			name:  "first title wins",
			body:  "<html><head><title>One</title></head><body><title>Two</title></body></html>",
			title: "One",
			found: true,
		},
		{
			name:  "no title",
			body:  "<html><body><h1>It works!</h1></body></html>",
			found: false,
		},
		{
			name:  "empty title is still a title",
			body:  "<html><head><title></title></head></html>",
			title: "",
			found: true,
		},
		{
			name:  "empty body",
			body:  "",
			found: false,
		},
		{
			name:  "not html at all",
			body:  `{"status":"ok"}`,
			found: false,
		},
		{
			name:  "entities are decoded",
			body:  "<title>Tom &amp; Jerry</title>",
			title: "Tom & Jerry",
			found: true,
		},
		{
			name:        "latin-1 body is decoded",
			body:        "<title>Caf\xe9</title>",
			contentType: "text/html; charset=iso-8859-1",
			title:       "Caf\u00e9",
			found:       true,
		},
		{
			name:  "line breaks collapse to one line",
			body:  "<title>Router\r\n  Login\tPage</title>",
			title: "Router Login Page",
			found: true,
		},
		{
			name:  "escape sequences are dropped",
			body:  "<title>Line1\nLine2 \x1b[31mRED\x1b[0m\x07</title>",
			title: "Line1 Line2 [31mRED[0m",
			found: true,
		},
		{
			name:  "c1 control characters are dropped",
			body:  "<meta charset=\"utf-8\"><title>A\u009b2JB</title>",
			title: "A2JB",
			found: true,
		},
		{
			name:  "decomposed text is normalised",
			body:  "<title>Cafe\u0301</title>",
			title: "Caf\u00e9",
			found: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			title, found, err := ExtractTitle([]byte(tc.body), tc.contentType)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if found != tc.found {
				t.Errorf("found = %v, expected %v", found, tc.found)
			}
			if title != tc.title {
				t.Errorf("title = %q, expected %q", title, tc.title)
			}
		})
	}
}
