// Package thread converts a stream of POD parse events into thread, the
// macro language understood by the spin page renderer. The converter is
// single pass: headings, paragraphs, verbatim blocks and lists are rendered
// as they arrive, and the optional page header (title, navigation bar,
// table of contents) is spliced into the accumulated output once the whole
// document has been seen.
package thread

import (
	"regexp"
	"strconv"
	"strings"
)

// entities maps POD E<> names to their literal replacement. Numeric
// references are handled separately. E<shy> maps to nothing: thread has no
// discretionary hyphen.
var entities = map[string]string{
	"amp":      "&",
	"apos":     "'",
	"lt":       "<",
	"gt":       ">",
	"quot":     `"`,
	"sol":      "/",
	"verbar":   "|",
	"shy":      "",
	"nbsp":     " ",
	"lchevron": "«",
	"rchevron": "»",
}

var numericEntity = regexp.MustCompile(`^(?:0[xX][0-9a-fA-F]+|0[0-7]*|[0-9]+)$`)

// resolveEntity returns the literal text for a named or numeric character
// reference, reporting whether the name was recognized.
func resolveEntity(name string) (string, bool) {
	if lit, ok := entities[name]; ok {
		return lit, true
	}
	if numericEntity.MatchString(name) {
		if v, err := strconv.ParseInt(name, 0, 32); err == nil {
			return string(rune(v)), true
		}
	}
	return "", false
}

// escape makes raw text safe to embed into thread macro arguments.
// Backslash is the command marker and square brackets delimit arguments, so
// all three must never appear literally.
func escape(s string) string {
	if !strings.ContainsAny(s, `\[]`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '[':
			b.WriteString(`\entity[91]`)
		case ']':
			b.WriteString(`\entity[93]`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nbspToSpace turns the non-breaking spaces introduced by S<> back into
// plain spaces for final rendering.
func nbspToSpace(s string) string {
	return strings.ReplaceAll(s, " ", " ")
}
