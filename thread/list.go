package thread

import (
	"go.uber.org/zap"

	"podthread/pod"
)

// listScope is one active list nesting level. An item's opening macro is
// deferred until its body text is known: the tag is held here while
// pending, and open tracks whether the item's body bracket still needs a
// closing "]".
type listScope struct {
	kind    pod.Kind
	tag     string // macro to open the next item with
	pending bool   // tag decided, body not seen yet
	open    bool   // body bracket emitted and not yet closed
}

func itemMacro(kind pod.Kind) string {
	switch kind {
	case pod.KindOverBullet:
		return `\bullet`
	case pod.KindOverNumber:
		return `\number`
	case pod.KindOverBlock:
		return `\block`
	default:
		return `\desc`
	}
}

func (c *Converter) topList() *listScope {
	if len(c.lists) == 0 {
		return nil
	}
	return c.lists[len(c.lists)-1]
}

// openList pushes a new list scope. Entering a nested list inside an item
// whose opening is still deferred forces that item open first, so nested
// content lands inside its body bracket.
func (c *Converter) openList(kind pod.Kind) {
	if parent := c.topList(); parent != nil && parent.pending {
		c.out.write(parent.tag + "\n[")
		parent.pending, parent.open = false, true
	}
	s := &listScope{kind: kind}
	if kind == pod.KindOverBlock {
		// block lists have no item markers, body begins with the first
		// paragraph
		s.tag, s.pending = itemMacro(kind), true
	}
	c.lists = append(c.lists, s)
}

// flushItem emits a pending item that never received body text as an empty
// block, closing the previous item's bracket first when needed.
func (c *Converter) flushItem(s *listScope) {
	if !s.pending {
		return
	}
	if s.open {
		c.out.write("]\n")
		s.open = false
	}
	c.out.write(s.tag + "\n[]\n")
	s.pending = false
}

// startItem records the opening macro for the next list item. label is the
// already formatted description term for description lists and ignored for
// every other list kind.
func (c *Converter) startItem(label string) {
	s := c.topList()
	if s == nil {
		// parser guarantees list context for items, defensive only
		return
	}
	c.flushItem(s)
	tag := itemMacro(s.kind)
	if s.kind == pod.KindOverText {
		tag += "[" + label + "]"
	}
	s.tag, s.pending = tag, true
}

// itemBody routes a formatted block of body text (a wrapped paragraph or a
// verbatim block, both terminating in a blank line) into the current list
// item. With no item pending this is a continuation of the previous item
// and goes out as is. Returns false when no list is active.
func (c *Converter) itemBody(text string) bool {
	s := c.topList()
	if s == nil {
		return false
	}
	if s.pending {
		if s.open {
			c.out.write("]\n")
		}
		c.out.write(s.tag + "\n[")
		s.pending, s.open = false, true
	}
	c.out.write(text)
	return true
}

// closeList flushes and pops the innermost list scope. A close with no
// matching open list is a warning, not an error: the nesting level is
// already at zero and stays there.
func (c *Converter) closeList(line int) {
	s := c.topList()
	if s == nil {
		c.log.Warn("List close without matching open list",
			zap.String("file", c.src), zap.Int("line", line))
		return
	}
	c.flushItem(s)
	if s.open {
		c.out.write("]\n")
		s.open = false
	}
	c.lists = c.lists[:len(c.lists)-1]
	if parent := c.topList(); parent != nil {
		// the enclosing item wrapped this whole list in its body bracket
		parent.open = true
	}
}

// interruptList closes the visual item context without popping scopes,
// used when a heading cuts into an unterminated list.
func (c *Converter) interruptList() {
	s := c.topList()
	if s == nil {
		return
	}
	c.flushItem(s)
	if s.open {
		c.out.write("]\n")
		s.open = false
	}
}
