// Package pod parses POD (plain old documentation) markup into a stream of
// structural events. The parser is line oriented: input is split into
// command, verbatim and ordinary paragraphs and every paragraph is turned
// into element start/text/end callbacks on a Handler. Inline formatting
// sequences (B<>, I<>, L<> and friends) arrive as nested elements around
// their text.
package pod

import "fmt"

// Kind identifies an element delivered to a Handler.
type Kind int

const (
	KindParagraph Kind = iota
	KindVerbatim
	KindHead1
	KindHead2
	KindHead3
	KindHead4
	KindOverBullet
	KindOverNumber
	KindOverText
	KindOverBlock
	KindItemBullet
	KindItemNumber
	KindItemText
	KindData // =begin/=for literal data paragraph
	KindBold
	KindItalic
	KindCode
	KindFile
	KindLink
	KindEntity
	KindNonBreaking
	KindIndex
	KindUnknown       // unrecognized =command
	KindUnknownInline // unrecognized letter formatting code
)

var kindNames = map[Kind]string{
	KindParagraph:     "paragraph",
	KindVerbatim:      "verbatim",
	KindHead1:         "head1",
	KindHead2:         "head2",
	KindHead3:         "head3",
	KindHead4:         "head4",
	KindOverBullet:    "over-bullet",
	KindOverNumber:    "over-number",
	KindOverText:      "over-text",
	KindOverBlock:     "over-block",
	KindItemBullet:    "item-bullet",
	KindItemNumber:    "item-number",
	KindItemText:      "item-text",
	KindData:          "data",
	KindBold:          "bold",
	KindItalic:        "italic",
	KindCode:          "code",
	KindFile:          "file",
	KindLink:          "link",
	KindEntity:        "entity",
	KindNonBreaking:   "non-breaking",
	KindIndex:         "index",
	KindUnknown:       "unknown",
	KindUnknownInline: "unknown-inline",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HeadLevel returns 1-4 for heading kinds and 0 for everything else.
func (k Kind) HeadLevel() int {
	switch k {
	case KindHead1:
		return 1
	case KindHead2:
		return 2
	case KindHead3:
		return 3
	case KindHead4:
		return 4
	}
	return 0
}

// LinkType classifies L<> targets.
type LinkType int

const (
	LinkURL LinkType = iota // scheme:... target
	LinkPod                 // POD document and/or section reference
	LinkMan                 // man page reference, for example ls(1)
)

func (t LinkType) String() string {
	switch t {
	case LinkURL:
		return "url"
	case LinkPod:
		return "pod"
	case LinkMan:
		return "man"
	}
	return fmt.Sprintf("linktype(%d)", int(t))
}

// Attributes carries per-element data. Only fields relevant to the element
// kind are set.
type Attributes struct {
	Line int // 1-based source line the element starts at

	Number int    // item-number ordinal
	Target string // =begin/=for format name, unknown command or code name

	// L<> resolution
	LinkType     LinkType
	To           string // document or URL target, empty for local sections
	Section      string // section name inside target document
	ExplicitText bool   // display text was spelled out with |
}

// Element is a single structural node reported to a Handler.
type Element struct {
	Kind Kind
	Attr Attributes
}

// DocumentInfo describes the document as a whole and is reported before any
// element event.
type DocumentInfo struct {
	Name        string // source name used in diagnostics
	ContentFree bool   // no POD content at all was found
}

// Error is a POD syntax problem recorded during the parse. Errata do not
// stop the parse; they are reported in bulk at DocumentEnd.
type Error struct {
	Msg  string
	Line int
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Handler receives parse events. Callbacks are invoked synchronously in
// document order from a single goroutine.
type Handler interface {
	DocumentStart(info DocumentInfo)
	ElementStart(e Element)
	Text(text string)
	ElementEnd(e Element)
	DocumentEnd(errata []*Error)
}
