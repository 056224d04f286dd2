// Package sanitize turns raw model output into a document body.
package sanitize

import (
	"regexp"
	"strings"
)

const fence = "```"

// fenceOpener matches a bare fence line with an optional language tag,
// e.g. "```", "```latex", "```tex".
var fenceOpener = regexp.MustCompile("^```[A-Za-z0-9_+.-]*$")

// Clean trims text and removes a surrounding fenced code block if the text
// starts with one. Unfenced text is returned trimmed and otherwise unchanged.
//
// Fences are stripped until none remain at the start, so
// Clean(Clean(x)) == Clean(x) holds even for doubled or unterminated fences.
func Clean(text string) string {
	s := strings.TrimSpace(text)
	for {
		stripped, ok := stripFence(s)
		if !ok {
			return s
		}
		s = stripped
	}
}

// stripFence removes one opener line and, if present, one trailing closing
// fence line. ok is false when s does not start with a fence opener.
func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, fence) {
		return s, false
	}

	opener, body, hasBody := strings.Cut(s, "\n")
	if !fenceOpener.MatchString(strings.TrimRight(opener, "\r")) {
		return s, false
	}
	if !hasBody {
		return "", true
	}

	body = strings.TrimRight(body, " \t\r\n")
	switch {
	case body == fence:
		body = ""
	case strings.HasSuffix(body, "\n"+fence):
		body = strings.TrimSuffix(body, "\n"+fence)
	}
	return strings.TrimSpace(body), true
}
