package pod

import (
	"regexp"
	"strings"
)

// Inline formatting sequence parsing: B<>, I<>, C<>, E<>, F<>, L<>, S<>,
// X<> and Z<>, including the multi-bracket forms (C<< ... >>). Sequences
// nest; every sequence becomes an element wrapped around its content
// events.

type inlineParser struct {
	run  *parseRun
	src  []rune
	pos  int
	line int
}

func (r *parseRun) inline(text string, line int) {
	ip := &inlineParser{run: r, src: []rune(text), line: line}
	ip.parse(0)
}

// parse emits events until the closing delimiter of the enclosing sequence
// (closeN '>' runes, preceded by whitespace when closeN > 1) or end of
// input. closeN of 0 means top level. Reports whether the closer was found.
func (p *inlineParser) parse(closeN int) bool {
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			p.run.h.Text(text.String())
			text.Reset()
		}
	}

	for p.pos < len(p.src) {
		if closeN > 0 && p.atCloser(closeN) {
			flush()
			p.consumeCloser(closeN)
			return true
		}
		if code, n, ok := p.atCode(); ok {
			flush()
			p.pos += 1 + n // letter and brackets
			if n > 1 && p.pos < len(p.src) && isSpace(p.src[p.pos]) {
				p.pos++
			}
			p.sequence(code, n)
			continue
		}
		text.WriteRune(p.src[p.pos])
		p.pos++
	}
	flush()
	if closeN > 0 {
		return false
	}
	return true
}

// atCode checks for a formatting code opener at the current position and
// returns the code letter and the number of opening brackets.
func (p *inlineParser) atCode() (rune, int, bool) {
	c := p.src[p.pos]
	if c < 'A' || c > 'Z' {
		return 0, 0, false
	}
	n := 0
	for p.pos+1+n < len(p.src) && p.src[p.pos+1+n] == '<' {
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	if n > 1 {
		// multi-bracket form requires whitespace after the delimiter
		if p.pos+1+n >= len(p.src) || !isSpace(p.src[p.pos+1+n]) {
			n = 1
		}
	}
	return c, n, true
}

func (p *inlineParser) atCloser(closeN int) bool {
	if closeN == 1 {
		return p.src[p.pos] == '>'
	}
	// whitespace followed by exactly closeN '>'
	if !isSpace(p.src[p.pos]) {
		return false
	}
	i := p.pos + 1
	n := 0
	for i+n < len(p.src) && p.src[i+n] == '>' {
		n++
	}
	return n >= closeN
}

func (p *inlineParser) consumeCloser(closeN int) {
	if closeN == 1 {
		p.pos++
		return
	}
	p.pos++ // whitespace
	p.pos += closeN
}

func (p *inlineParser) sequence(code rune, n int) {
	switch code {
	case 'E':
		name := p.rawContent(n, false)
		el := Element{Kind: KindEntity, Attr: Attributes{Line: p.line, Target: strings.TrimSpace(name)}}
		p.run.h.ElementStart(el)
		p.run.h.ElementEnd(el)
	case 'Z':
		// Z<> produces nothing, content (if any) is dropped
		p.rawContent(n, false)
	case 'L':
		p.link(n)
	default:
		var kind Kind
		attr := Attributes{Line: p.line}
		switch code {
		case 'B':
			kind = KindBold
		case 'I':
			kind = KindItalic
		case 'C':
			kind = KindCode
		case 'F':
			kind = KindFile
		case 'S':
			kind = KindNonBreaking
		case 'X':
			kind = KindIndex
		default:
			kind = KindUnknownInline
			attr.Target = string(code)
		}
		el := Element{Kind: kind, Attr: attr}
		p.run.h.ElementStart(el)
		if !p.parse(n) {
			p.run.errorf(p.line, "unterminated %c<> formatting code", code)
		}
		p.run.h.ElementEnd(el)
	}
}

// rawContent consumes the sequence body without emitting events, honoring
// nested formatting codes when nested is set.
func (p *inlineParser) rawContent(n int, nested bool) string {
	var b strings.Builder
	depth := 0
	for p.pos < len(p.src) {
		if depth == 0 && p.atCloser(n) {
			p.consumeCloser(n)
			return b.String()
		}
		c := p.src[p.pos]
		if nested {
			if _, _, ok := p.atCode(); ok {
				depth++
			} else if c == '>' && depth > 0 {
				depth--
			}
		}
		b.WriteRune(c)
		p.pos++
	}
	p.run.errorf(p.line, "unterminated formatting code")
	return b.String()
}

var urlTarget = regexp.MustCompile(`^\w+:[^:\s]\S*$`)
var manTarget = regexp.MustCompile(`^[^\s()]+\([\w+]*\)$`)

func (p *inlineParser) link(n int) {
	raw := p.rawContent(n, true)
	raw = strings.Join(strings.Fields(raw), " ")

	display, target, explicit := splitLinkText(raw)

	attr := Attributes{Line: p.line, ExplicitText: explicit}
	var defaultText string

	switch {
	case urlTarget.MatchString(target):
		attr.LinkType = LinkURL
		attr.To = target
		defaultText = target
	case manTarget.MatchString(target):
		attr.LinkType = LinkMan
		attr.To = target
		defaultText = target
	default:
		attr.LinkType = LinkPod
		name, section := splitLinkTarget(target)
		attr.To = name
		attr.Section = section
		switch {
		case name != "" && section != "":
			defaultText = `"` + section + `" in ` + name
		case section != "":
			defaultText = `"` + section + `"`
		default:
			defaultText = name
		}
	}

	el := Element{Kind: KindLink, Attr: attr}
	p.run.h.ElementStart(el)
	if explicit {
		// display text may itself carry formatting codes
		sub := &inlineParser{run: p.run, src: []rune(display), line: p.line}
		sub.parse(0)
	} else {
		p.run.h.Text(defaultText)
	}
	p.run.h.ElementEnd(el)
}

// splitLinkText splits L<> content on the first top-level | into display
// text and target.
func splitLinkText(raw string) (display, target string, explicit bool) {
	depth := 0
	for i, c := range raw {
		switch c {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case '|':
			if depth == 0 {
				return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:]), true
			}
		}
	}
	return "", strings.TrimSpace(raw), false
}

// splitLinkTarget splits a POD link target into document name and section,
// handling L<name/section>, L</section> and the legacy quoted L<"section">
// forms. Returned section has surrounding quotes removed.
func splitLinkTarget(target string) (name, section string) {
	if i := strings.Index(target, "/"); i >= 0 {
		name, section = strings.TrimSpace(target[:i]), strings.TrimSpace(target[i+1:])
	} else if strings.HasPrefix(target, `"`) && strings.HasSuffix(target, `"`) && len(target) > 1 {
		section = target
	} else {
		name = target
	}
	section = strings.TrimPrefix(section, `"`)
	section = strings.TrimSuffix(section, `"`)
	return name, section
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}
