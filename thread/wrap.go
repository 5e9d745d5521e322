package thread

import (
	"strings"
)

// defaultWidth is the column paragraphs are wrapped at.
const defaultWidth = 74

// reformat collapses an interpolated, already escaped block of text into a
// wrapped paragraph terminated by a blank line. Two spaces are enforced
// after sentence-ending periods, runs of three and more spaces collapse to
// two, and lines are wrapped greedily at width columns. When no break point
// exists before the width limit the break moves forward to the next
// whitespace rather than splitting a word, so a single token longer than
// the width keeps its own over-long line.
//
// Empty and whitespace-only input produces no output at all.
func reformat(text string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		// two spaces after a sentence end once newlines collapse
		if strings.HasSuffix(line, ".") {
			line += " "
		}
		lines[i] = line
	}
	joined := strings.Join(lines, " ")
	joined = collapseSpaces(joined)
	joined = strings.TrimRight(joined, " ")
	if strings.TrimSpace(joined) == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(joined) + 8)
	rest := []rune(strings.TrimLeft(joined, " "))
	for len(rest) > 0 {
		if len(rest) <= width {
			b.WriteString(strings.TrimRight(string(rest), " "))
			b.WriteByte('\n')
			break
		}
		cut := -1
		for i := width; i >= 0; i-- {
			if rest[i] == ' ' {
				cut = i
				break
			}
		}
		if cut < 0 {
			// no break point before the limit, search forward
			for i := width + 1; i < len(rest); i++ {
				if rest[i] == ' ' {
					cut = i
					break
				}
			}
		}
		if cut < 0 {
			b.WriteString(string(rest))
			b.WriteByte('\n')
			break
		}
		b.WriteString(strings.TrimRight(string(rest[:cut]), " "))
		b.WriteByte('\n')
		rest = []rune(strings.TrimLeft(string(rest[cut:]), " "))
	}
	b.WriteByte('\n')
	return nbspToSpace(b.String())
}

// collapseSpaces reduces runs of three and more spaces to exactly two.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	run := 0
	for _, r := range s {
		if r == ' ' {
			run++
			if run > 2 {
				continue
			}
		} else {
			run = 0
		}
		b.WriteRune(r)
	}
	return b.String()
}
