package thread

import (
	"bytes"
	"regexp"
)

// sink buffers emitted thread text. Runs of trailing blank lines are held
// back so that a closing bracket of an enclosing macro block can be emitted
// before them: output should read as "]" immediately after a block's last
// line, then the blank line, not the other way around.
type sink struct {
	buf   bytes.Buffer
	space string // deferred trailing blank lines
}

var closingBracket = regexp.MustCompile(`^\][ \t]*\n`)

// write appends a text fragment, interleaving any deferred blank lines with
// a leading close bracket of the fragment.
func (o *sink) write(s string) {
	if s == "" {
		return
	}
	if o.space != "" {
		if m := closingBracket.FindString(s); m != "" {
			o.buf.WriteString(m)
			s = s[len(m):]
		}
		o.buf.WriteString(o.space)
		o.space = ""
		if s == "" {
			return
		}
	}
	n := 0
	for n < len(s) && s[len(s)-1-n] == '\n' {
		n++
	}
	if n >= 2 {
		// keep one newline, defer the rest
		o.space = s[len(s)-n+1:]
		s = s[:len(s)-n+1]
	}
	o.buf.WriteString(s)
}

// offset returns the current length of accumulated output, used to record
// header splice points.
func (o *sink) offset() int {
	return o.buf.Len()
}

// flush returns accumulated output including any still deferred blank
// lines.
func (o *sink) flush() []byte {
	if o.space != "" {
		o.buf.WriteString(o.space)
		o.space = ""
	}
	return o.buf.Bytes()
}
