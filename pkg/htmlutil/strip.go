package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements end a line of text when they open or close.
var blockElements = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Br:         true,
	atom.Li:         true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Blockquote: true,
	atom.Tr:         true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
}

// skippedElements have their text content dropped entirely.
var skippedElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// StripTags removes all HTML tags from a string and normalizes whitespace.
// Block-level elements become line breaks, entities are decoded, runs of
// whitespace within a line collapse to a single space and blank lines are
// dropped.
func StripTags(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	skipDepth := 0
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		tok := z.Token()
		switch tt {
		case html.TextToken:
			if skipDepth == 0 {
				b.WriteString(tok.Data)
			}
		case html.StartTagToken:
			if skippedElements[tok.DataAtom] {
				skipDepth++
			}
			if blockElements[tok.DataAtom] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			if skippedElements[tok.DataAtom] && skipDepth > 0 {
				skipDepth--
			}
			if blockElements[tok.DataAtom] {
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if blockElements[tok.DataAtom] {
				b.WriteByte('\n')
			}
		}
	}

	return normalizeLines(b.String())
}

// normalizeLines collapses whitespace within each line and drops empty lines.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		// strings.Fields also splits on U+00A0, which &nbsp; decodes to.
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
