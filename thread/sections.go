package thread

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/maruel/natural"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// navbarWidth is the approximate per-line character budget of heading text
// in the navigation bar, markup not counted.
const navbarWidth = 65

// section is one registered top level heading.
type section struct {
	anchor    string
	plain     string // markup-free heading text, registry key
	formatted string // heading text with inline markup applied
}

// registry maps top level heading text to generated anchor tags. Anchors
// are assigned in heading-encounter order and always start with a letter so
// they stay valid tag identifiers. A caller may supply a pre-computed
// heading-to-anchor mapping instead, in which case no anchors are invented
// here.
type registry struct {
	anchors  map[string]string
	external bool
	order    []*section
}

func newRegistry(pre map[string]string) *registry {
	r := &registry{anchors: pre, external: pre != nil}
	if r.anchors == nil {
		r.anchors = make(map[string]string)
	}
	return r
}

// register records a heading and returns its anchor, empty when the heading
// has none. Repeated registration of the same heading text keeps the first
// anchor.
func (r *registry) register(plain, formatted string) string {
	if a, ok := r.anchors[plain]; ok {
		if r.external {
			// external mapping knows anchors but not display text
			r.order = append(r.order, &section{anchor: a, plain: plain, formatted: formatted})
		}
		return a
	}
	if r.external {
		return ""
	}
	a := fmt.Sprintf("S%d", len(r.order)+1)
	r.anchors[plain] = a
	r.order = append(r.order, &section{anchor: a, plain: plain, formatted: formatted})
	return a
}

func (r *registry) lookup(plain string) (string, bool) {
	a, ok := r.anchors[plain]
	return a, ok
}

// sections returns registered headings in anchor order. The underlying map
// is unordered, so ordering is recovered from the anchors themselves: they
// encode the assignment sequence and sort naturally ("S2" before "S10").
func (r *registry) sections() []*section {
	out := make([]*section, len(r.order))
	copy(out, r.order)
	sort.Slice(out, func(i, j int) bool {
		return natural.Less(out[i].anchor, out[j].anchor)
	})
	return out
}

// contents renders the "Table of Contents" block: one densely packed
// numbered entry per heading, each linking to its anchor.
func (r *registry) contents() string {
	secs := r.sections()
	if len(secs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\\h2[Table of Contents]\n\n")
	for _, s := range secs {
		fmt.Fprintf(&b, "\\number(packed)[\\link[#%s][%s]]\n", s.anchor, nbspToSpace(s.formatted))
	}
	b.WriteString("\n")
	return b.String()
}

var titleCaser = cases.Title(language.English)

// navbarLabel title-cases heading words for navigation bar display, so an
// all-caps POD heading like OPTIONS reads as Options. The word "and" stays
// lowercase. Words joined by non-breaking spaces count as a single word and
// are split back into plain spaces afterwards.
func navbarLabel(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if strings.EqualFold(w, "and") {
			words[i] = "and"
			continue
		}
		words[i] = titleCaser.String(w)
	}
	return nbspToSpace(strings.Join(words, " "))
}

// navbar renders the horizontal navigation bar: a single run of links
// separated by vertical bars, wrapped once a line's heading text exceeds
// the character budget.
func (r *registry) navbar() string {
	secs := r.sections()
	if len(secs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\\class(navbar)[\n")
	width := 0
	for i, s := range secs {
		label := navbarLabel(s.plain)
		n := utf8.RuneCountInString(label)
		switch {
		case i == 0:
			b.WriteString("  ")
			width = n
		case width+n+3 > navbarWidth:
			b.WriteString("\n  | ")
			width = n
		default:
			b.WriteString(" | ")
			width += n + 3
		}
		fmt.Fprintf(&b, "\\link[#%s][%s]", s.anchor, escape(label))
	}
	b.WriteString("\n]\n\n")
	return b.String()
}
