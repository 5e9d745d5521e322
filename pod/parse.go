package pod

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Parser turns POD source into Handler events. A single Parser may be reused
// for multiple documents, but not concurrently.
type Parser struct {
	log *zap.Logger
}

func NewParser(log *zap.Logger) *Parser {
	return &Parser{log: log}
}

// paragraph is a blank-line separated run of input lines.
type paragraph struct {
	lines []string
	start int // 1-based line number of the first line
}

func (p *paragraph) command() bool {
	return len(p.lines) > 0 && strings.HasPrefix(p.lines[0], "=")
}

func (p *paragraph) verbatim() bool {
	return len(p.lines) > 0 && (strings.HasPrefix(p.lines[0], " ") || strings.HasPrefix(p.lines[0], "\t"))
}

// text returns paragraph content with the command marker (if any) removed.
func (p *paragraph) text() string {
	lines := p.lines
	if p.command() {
		first := strings.TrimPrefix(lines[0], "="+p.name())
		first = strings.TrimLeft(first, " \t")
		lines = append([]string{first}, lines[1:]...)
		if first == "" && len(lines) > 1 {
			lines = lines[1:]
		}
	}
	return strings.Join(lines, "\n")
}

func (p *paragraph) name() string {
	if !p.command() {
		return ""
	}
	rest := p.lines[0][1:]
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// Parse reads POD from r and delivers events for it to h. The returned error
// reports read failures only; POD syntax problems are collected as errata
// and handed to h.DocumentEnd.
func (p *Parser) Parse(r io.Reader, name string, h Handler) error {
	paras, err := collectParagraphs(r)
	if err != nil {
		return fmt.Errorf("unable to read POD source (%s): %w", name, err)
	}

	run := &parseRun{parser: p, h: h, name: name}
	run.emit(paras)
	return nil
}

// collectParagraphs splits input into POD paragraphs, skipping non-POD
// content (code in .pm files before the first command and after =cut).
func collectParagraphs(r io.Reader) ([]*paragraph, error) {
	var (
		paras   []*paragraph
		current *paragraph
		inPod   bool
		lineNo  int
	)

	flush := func() {
		if current != nil {
			paras = append(paras, current)
			current = nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		if !inPod {
			if isCommandLine(line) {
				inPod = true
			} else {
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if isCommandLine(line) {
			// command paragraphs always start a new paragraph
			flush()
		}
		if current == nil {
			current = &paragraph{start: lineNo}
		}
		current.lines = append(current.lines, line)

		if current.command() && current.name() == "cut" {
			inPod = false
			current = nil
		}
	}
	flush()
	return paras, sc.Err()
}

var commandLine = regexp.MustCompile(`^=[a-zA-Z]`)

func isCommandLine(line string) bool {
	return commandLine.MatchString(line)
}

// overScope tracks one =over nesting level until its kind is known.
type overScope struct {
	kind     Kind // valid only when decided
	decided  bool
	expected int // next ordinal for numbered lists
	line     int
}

// beginScope tracks one =begin nesting level.
type beginScope struct {
	format string
	line   int
}

// parseRun is per-document parser state.
type parseRun struct {
	parser *Parser
	h      Handler
	name   string

	overs  []*overScope
	begins []*beginScope
	errata []*Error
}

func (r *parseRun) errorf(line int, format string, args ...any) {
	r.errata = append(r.errata, &Error{Msg: fmt.Sprintf(format, args...), Line: line})
}

func (r *parseRun) emit(paras []*paragraph) {
	r.h.DocumentStart(DocumentInfo{Name: r.name, ContentFree: len(paras) == 0})

	for _, para := range paras {
		if para.command() {
			r.emitCommand(para)
		} else {
			r.emitBlock(para)
		}
	}
	r.finish()
}

// finish balances unterminated scopes and reports accumulated errata.
func (r *parseRun) finish() {
	for i := len(r.begins) - 1; i >= 0; i-- {
		r.errorf(r.begins[i].line, "=begin %s without matching =end", r.begins[i].format)
	}
	for i := len(r.overs) - 1; i >= 0; i-- {
		s := r.overs[i]
		r.errorf(s.line, "=over without matching =back")
		if !s.decided {
			s.kind, s.decided = KindOverBlock, true
			r.h.ElementStart(Element{Kind: KindOverBlock, Attr: Attributes{Line: s.line}})
		}
		r.h.ElementEnd(Element{Kind: s.kind, Attr: Attributes{Line: s.line}})
	}
	r.overs = nil
	r.h.DocumentEnd(r.errata)
}

// dataFormat reports whether content is currently being collected for a
// literal =begin/=end block and which format requested it.
func (r *parseRun) dataFormat() (string, bool) {
	if len(r.begins) == 0 {
		return "", false
	}
	return r.begins[len(r.begins)-1].format, true
}

func (r *parseRun) emitCommand(para *paragraph) {
	name, text, line := para.name(), para.text(), para.start

	// inside a literal block only =end (and nested =begin) are structural
	if format, ok := r.dataFormat(); ok && !strings.HasPrefix(format, ":") {
		switch name {
		case "end":
			r.endBlock(strings.TrimSpace(text), line)
		case "begin":
			// nested begin inside skipped content, track for balance
			r.begins = append(r.begins, &beginScope{format: firstWord(text), line: line})
		default:
			if format == "thread" {
				r.data(para.text())
			}
		}
		return
	}

	switch name {
	case "pod", "encoding":
		// =pod is a no-op by the time we are here, =encoding is informational
		if name == "encoding" && !utf8Name(strings.TrimSpace(text)) {
			r.parser.log.Warn("Source declares non UTF-8 encoding, reading as UTF-8 anyway",
				zap.String("file", r.name), zap.Int("line", line), zap.String("encoding", strings.TrimSpace(text)))
		}
	case "head1", "head2", "head3", "head4":
		level := int(name[4] - '0')
		el := Element{Kind: KindHead1 + Kind(level-1), Attr: Attributes{Line: line}}
		r.h.ElementStart(el)
		r.inline(text, line)
		r.h.ElementEnd(el)
	case "over":
		// an =over inside a list whose kind is still unknown makes the
		// outer list a block list
		r.decideBlock(line)
		r.overs = append(r.overs, &overScope{expected: 1, line: line})
	case "item":
		r.item(text, line)
	case "back":
		r.back(line)
	case "begin":
		r.beginBlock(firstWord(text), line)
	case "end":
		r.endBlock(strings.TrimSpace(text), line)
	case "for":
		r.forBlock(text, line)
	case "cut":
		// handled during paragraph collection
	default:
		el := Element{Kind: KindUnknown, Attr: Attributes{Line: line, Target: name}}
		r.h.ElementStart(el)
		if text != "" {
			r.h.Text(text)
		}
		r.h.ElementEnd(el)
	}
}

// decideBlock resolves the innermost undecided list to a block list. Called
// when non-item content shows up before the first =item.
func (r *parseRun) decideBlock(line int) {
	if len(r.overs) == 0 {
		return
	}
	s := r.overs[len(r.overs)-1]
	if s.decided {
		return
	}
	s.kind, s.decided = KindOverBlock, true
	r.h.ElementStart(Element{Kind: KindOverBlock, Attr: Attributes{Line: line}})
}

var numberMarker = regexp.MustCompile(`^(\d+)[.)]?$`)

func (r *parseRun) item(text string, line int) {
	if len(r.overs) == 0 {
		r.errorf(line, "=item outside of any =over/=back block")
		return
	}
	s := r.overs[len(r.overs)-1]

	marker := strings.TrimSpace(text)
	var trailing string // text following a bullet or number marker

	if !s.decided {
		s.decided = true
		switch {
		case marker == "*" || strings.HasPrefix(marker, "* "):
			s.kind = KindOverBullet
		case numberMarker.MatchString(marker) && parseInt(numberMarker.FindStringSubmatch(marker)[1]) == s.expected:
			s.kind = KindOverNumber
		case marker == "":
			s.kind = KindOverBlock
		default:
			s.kind = KindOverText
		}
		r.h.ElementStart(Element{Kind: s.kind, Attr: Attributes{Line: s.line}})
	}

	switch s.kind {
	case KindOverBullet:
		trailing = strings.TrimSpace(strings.TrimPrefix(marker, "*"))
		el := Element{Kind: KindItemBullet, Attr: Attributes{Line: line}}
		r.h.ElementStart(el)
		r.h.ElementEnd(el)
	case KindOverNumber:
		m := numberMarker.FindStringSubmatch(marker)
		num := s.expected
		if m == nil {
			r.errorf(line, "expected '=item %d' in numbered list, got '=item %s'", s.expected, marker)
		} else {
			num = parseInt(m[1])
			if num != s.expected {
				r.errorf(line, "expected '=item %d' in numbered list, got '=item %d'", s.expected, num)
			}
		}
		s.expected++
		el := Element{Kind: KindItemNumber, Attr: Attributes{Line: line, Number: num}}
		r.h.ElementStart(el)
		r.h.ElementEnd(el)
	case KindOverBlock:
		// no marker rendered, any text is plain body content
		trailing = marker
	default: // KindOverText
		el := Element{Kind: KindItemText, Attr: Attributes{Line: line}}
		r.h.ElementStart(el)
		r.inline(text, line)
		r.h.ElementEnd(el)
	}

	if trailing != "" {
		el := Element{Kind: KindParagraph, Attr: Attributes{Line: line}}
		r.h.ElementStart(el)
		r.inline(trailing, line)
		r.h.ElementEnd(el)
	}
}

func (r *parseRun) back(line int) {
	if len(r.overs) == 0 {
		// the conversion engine decides how to report this, our scope
		// bookkeeping is simply unaffected
		r.h.ElementEnd(Element{Kind: KindOverBlock, Attr: Attributes{Line: line}})
		return
	}
	s := r.overs[len(r.overs)-1]
	r.overs = r.overs[:len(r.overs)-1]
	if !s.decided {
		// empty list
		s.kind = KindOverBlock
		r.h.ElementStart(Element{Kind: KindOverBlock, Attr: Attributes{Line: s.line}})
	}
	r.h.ElementEnd(Element{Kind: s.kind, Attr: Attributes{Line: line}})
}

func (r *parseRun) beginBlock(format string, line int) {
	if format == "" {
		r.errorf(line, "=begin without a format name")
		format = "*missing*"
	}
	r.begins = append(r.begins, &beginScope{format: format, line: line})
}

func (r *parseRun) endBlock(format string, line int) {
	if len(r.begins) == 0 {
		r.errorf(line, "=end %s without matching =begin", format)
		return
	}
	top := r.begins[len(r.begins)-1]
	if top.format != format {
		r.errorf(line, "=end %s does not match =begin %s", format, top.format)
	}
	r.begins = r.begins[:len(r.begins)-1]
}

func (r *parseRun) forBlock(text string, line int) {
	format := firstWord(text)
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimLeft(text, " \t"), format))
	switch {
	case format == "thread":
		r.data(body)
	case strings.HasPrefix(format, ":"):
		r.decideBlock(line)
		el := Element{Kind: KindParagraph, Attr: Attributes{Line: line}}
		r.h.ElementStart(el)
		r.inline(body, line)
		r.h.ElementEnd(el)
	default:
		// other formats are somebody else's content
	}
}

func (r *parseRun) data(text string) {
	el := Element{Kind: KindData, Attr: Attributes{Target: "thread"}}
	r.h.ElementStart(el)
	r.h.Text(text)
	r.h.ElementEnd(el)
}

func (r *parseRun) emitBlock(para *paragraph) {
	if format, ok := r.dataFormat(); ok && !strings.HasPrefix(format, ":") {
		if format == "thread" {
			r.data(para.text())
		}
		return
	}

	r.decideBlock(para.start)

	if para.verbatim() {
		el := Element{Kind: KindVerbatim, Attr: Attributes{Line: para.start}}
		r.h.ElementStart(el)
		r.h.Text(para.text())
		r.h.ElementEnd(el)
		return
	}

	el := Element{Kind: KindParagraph, Attr: Attributes{Line: para.start}}
	r.h.ElementStart(el)
	r.inline(para.text(), para.start)
	r.h.ElementEnd(el)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func utf8Name(s string) bool {
	switch strings.ToLower(s) {
	case "", "utf8", "utf-8", "ascii", "us-ascii":
		return true
	}
	return false
}
