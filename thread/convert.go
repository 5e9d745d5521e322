package thread

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"podthread/pod"
)

// Options configures a single conversion.
type Options struct {
	Contents  bool              // emit "Table of Contents" listing
	Navbar    bool              // emit navigation bar
	Style     string            // stylesheet reference for \heading
	Title     string            // explicit title, overrides NAME detection
	ID        string            // document identifier emitted as \id
	WrapWidth int               // wrap column, defaultWidth when 0
	Anchors   map[string]string // pre-computed heading to anchor mapping
}

// Converter drives a single POD to thread conversion. It implements
// pod.Handler and renders elements as the parser reports them. A Converter
// holds per-document state and must not be reused.
type Converter struct {
	opts Options
	log  *zap.Logger
	src  string

	out    *sink
	reg    *registry
	lists  []*listScope
	frames []*frame

	inName      bool
	title       string
	subhead     string
	headerOn    bool
	headerAt    int
	contentFree bool
	errata      []*pod.Error
}

// frame accumulates the text of one open text-bearing element, in two
// renderings: out carries escaped text with inline macros applied, plain
// carries markup-free text for registry keys and link comparisons.
type frame struct {
	el    pod.Element
	out   strings.Builder
	plain strings.Builder
}

func New(opts Options, log *zap.Logger) *Converter {
	if opts.WrapWidth <= 0 {
		opts.WrapWidth = defaultWidth
	}
	return &Converter{
		opts:     opts,
		log:      log,
		out:      &sink{},
		reg:      newRegistry(opts.Anchors),
		headerAt: -1,
	}
}

// Title returns the document title established during conversion, either
// the configured override or the one parsed from the NAME section. Empty
// when the document had neither.
func (c *Converter) Title() string {
	return c.title
}

// Convert parses POD from r and writes the thread rendering to w. name is
// used in diagnostics. Returns an error when the destination cannot be
// written or when the source contained POD syntax errors; in the latter
// case all successfully converted output has been written already.
func (c *Converter) Convert(r io.Reader, name string, w io.Writer) error {
	c.src = name
	if err := pod.NewParser(c.log).Parse(r, name, c); err != nil {
		return err
	}

	data := c.finalize()
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("unable to write thread output: %w", err)
		}
	}

	if len(c.errata) > 0 {
		var errs error
		for _, e := range c.errata {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.src, e))
		}
		return fmt.Errorf("POD source had syntax errors: %w", errs)
	}
	return nil
}

// finalize assembles the document: accumulated body with the page header
// block spliced in at the position recorded when the header was triggered.
func (c *Converter) finalize() []byte {
	if c.contentFree {
		return nil
	}
	body := c.out.flush()
	if !c.headerOn {
		return body
	}
	header := []byte(c.header())
	at := c.headerAt
	if at < 0 || at > len(body) {
		at = 0
	}
	out := make([]byte, 0, len(body)+len(header))
	out = append(out, body[:at]...)
	out = append(out, header...)
	out = append(out, body[at:]...)
	return out
}

func (c *Converter) header() string {
	var b strings.Builder
	title := escape(nbspToSpace(c.title))
	if c.opts.ID != "" {
		fmt.Fprintf(&b, "\\id[%s]\n\n", escape(c.opts.ID))
	}
	fmt.Fprintf(&b, "\\heading[%s][%s]\n\n", title, escape(c.opts.Style))
	fmt.Fprintf(&b, "\\h1[%s]\n\n", title)
	if c.subhead != "" {
		fmt.Fprintf(&b, "\\class(subhead)[(%s)]\n\n", escape(nbspToSpace(c.subhead)))
	}
	if c.opts.Navbar {
		b.WriteString(c.reg.navbar())
	}
	if c.opts.Contents {
		b.WriteString(c.reg.contents())
	}
	return b.String()
}

// frame stack helpers

func (c *Converter) push(e pod.Element) {
	c.frames = append(c.frames, &frame{el: e})
}

func (c *Converter) pop() *frame {
	if len(c.frames) == 0 {
		return nil
	}
	f := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	return f
}

func (c *Converter) top() *frame {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// appendInline adds rendered inline content to the enclosing frame.
func (c *Converter) appendInline(out, plain string) {
	f := c.top()
	if f == nil {
		return
	}
	f.out.WriteString(out)
	f.plain.WriteString(plain)
}

// pod.Handler implementation

func (c *Converter) DocumentStart(info pod.DocumentInfo) {
	if c.src == "" {
		c.src = info.Name
	}
	c.contentFree = info.ContentFree
	if c.opts.Title != "" {
		// explicit title renders the header at the very top of the output
		c.title = c.opts.Title
		c.headerOn, c.headerAt = true, 0
	}
}

func (c *Converter) ElementStart(e pod.Element) {
	switch e.Kind {
	case pod.KindOverBullet, pod.KindOverNumber, pod.KindOverText, pod.KindOverBlock:
		c.openList(e.Kind)
	case pod.KindItemBullet, pod.KindItemNumber:
		// handled on end event
	case pod.KindEntity:
		c.entity(e.Attr)
	case pod.KindUnknown:
		c.log.Warn("Unknown POD command, skipping",
			zap.String("file", c.src), zap.Int("line", e.Attr.Line), zap.String("command", e.Attr.Target))
		c.push(e)
	default:
		c.push(e)
	}
}

func (c *Converter) Text(text string) {
	f := c.top()
	if f == nil {
		return
	}
	if f.el.Kind == pod.KindData {
		// literal thread content is passed through untouched
		f.out.WriteString(text)
		return
	}
	f.out.WriteString(escape(text))
	f.plain.WriteString(text)
}

func (c *Converter) ElementEnd(e pod.Element) {
	switch e.Kind {
	case pod.KindParagraph:
		c.paragraph(c.pop())
	case pod.KindVerbatim:
		c.verbatim(c.pop())
	case pod.KindHead1, pod.KindHead2, pod.KindHead3, pod.KindHead4:
		c.heading(e.Kind.HeadLevel(), c.pop())
	case pod.KindData:
		c.data(c.pop())
	case pod.KindOverBullet, pod.KindOverNumber, pod.KindOverText, pod.KindOverBlock:
		c.closeList(e.Attr.Line)
	case pod.KindItemBullet, pod.KindItemNumber:
		c.startItem("")
	case pod.KindItemText:
		f := c.pop()
		c.startItem(nbspToSpace(f.out.String()))
	case pod.KindBold:
		f := c.pop()
		c.appendInline(`\bold[`+f.out.String()+`]`, f.plain.String())
	case pod.KindItalic:
		f := c.pop()
		c.appendInline(`\italic[`+f.out.String()+`]`, f.plain.String())
	case pod.KindCode:
		f := c.pop()
		c.appendInline(`\code[`+f.out.String()+`]`, f.plain.String())
	case pod.KindFile:
		f := c.pop()
		c.appendInline(`\italic(file)[`+f.out.String()+`]`, f.plain.String())
	case pod.KindNonBreaking:
		f := c.pop()
		c.appendInline(
			strings.ReplaceAll(f.out.String(), " ", "\u00a0"),
			strings.ReplaceAll(f.plain.String(), " ", "\u00a0"))
	case pod.KindIndex, pod.KindUnknown:
		// index markers produce no output, unknown command content is
		// dropped after the warning
		c.pop()
	case pod.KindUnknownInline:
		f := c.pop()
		c.log.Warn("Unknown formatting code, passing through",
			zap.String("file", c.src), zap.Int("line", e.Attr.Line), zap.String("code", e.Attr.Target))
		c.appendInline(e.Attr.Target+"<"+f.out.String()+">", e.Attr.Target+"<"+f.plain.String()+">")
	case pod.KindLink:
		c.link(e.Attr, c.pop())
	case pod.KindEntity:
		// handled on start event
	}
}

func (c *Converter) DocumentEnd(errata []*pod.Error) {
	c.errata = errata
	if c.contentFree {
		return
	}
	c.out.write("\\signature\n")
}

// block handling

var nameSplit = regexp.MustCompile(`\s+-+\s+`)

func (c *Converter) paragraph(f *frame) {
	if f == nil {
		return
	}
	if c.inName {
		// the NAME section body carries "name - description", it becomes
		// the page header instead of rendered text
		text := strings.Join(strings.Fields(f.plain.String()), " ")
		if parts := nameSplit.Split(text, 2); len(parts) == 2 {
			c.title, c.subhead = parts[0], parts[1]
		} else {
			c.title = text
		}
		c.headerOn, c.headerAt = true, c.out.offset()
		c.inName = false
		return
	}
	text := reformat(f.out.String(), c.opts.WrapWidth)
	if text == "" {
		return
	}
	if !c.itemBody(text) {
		c.out.write(text)
	}
}

func (c *Converter) verbatim(f *frame) {
	if f == nil {
		return
	}
	text := strings.TrimRight(f.out.String(), " \t\n")
	if text == "" {
		return
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	block := "\\pre\n[" + strings.Join(lines, "\n") + "]\n\n"
	if !c.itemBody(block) {
		c.out.write(block)
	}
}

func (c *Converter) data(f *frame) {
	if f == nil {
		return
	}
	text := strings.TrimRight(f.out.String(), "\n")
	if text == "" {
		return
	}
	c.out.write(text + "\n\n")
}

func (c *Converter) heading(level int, f *frame) {
	if f == nil {
		return
	}
	c.interruptList()

	plain := strings.Join(strings.Fields(nbspToSpace(f.plain.String())), " ")
	formatted := nbspToSpace(f.out.String())

	var anchor string
	if level == 1 {
		if plain == "NAME" && c.opts.Title == "" && !c.headerOn {
			c.inName = true
			return
		}
		c.inName = false
		if c.opts.Contents || c.opts.Navbar || c.opts.Anchors != nil {
			anchor = c.reg.register(plain, formatted)
		}
	}

	tag := fmt.Sprintf(`\h%d`, level+1)
	if anchor != "" {
		tag += "(#" + anchor + ")"
	}
	c.out.write(tag + "[" + formatted + "]\n\n")
}

// inline link resolution

func (c *Converter) entity(attr pod.Attributes) {
	lit, ok := resolveEntity(attr.Target)
	if !ok {
		c.log.Warn("Unknown character escape, passing through",
			zap.String("file", c.src), zap.Int("line", attr.Line), zap.String("name", attr.Target))
		raw := "E<" + attr.Target + ">"
		c.appendInline(raw, raw)
		return
	}
	c.appendInline(escape(lit), lit)
}

func (c *Converter) link(attr pod.Attributes, f *frame) {
	if f == nil {
		return
	}
	text, plain := f.out.String(), f.plain.String()

	switch {
	case attr.LinkType == pod.LinkURL:
		out := fmt.Sprintf(`\link[%s][%s]`, escape(attr.To), text)
		if plain == attr.To {
			// bare URL, flag it visually
			out = "<" + out + ">"
		}
		c.appendInline(out, plain)
	case attr.LinkType == pod.LinkPod && attr.To == "" && attr.Section != "":
		if anchor, ok := c.reg.lookup(attr.Section); ok {
			c.appendInline(fmt.Sprintf(`\link[#%s][%s]`, anchor, stripQuotes(text)), stripQuotes(plain))
			return
		}
		// not a known local section, degrade to plain text
		c.appendInline(text, plain)
	default:
		// cross-document and man page references have nowhere to point
		c.appendInline(text, plain)
	}
}

func stripQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
