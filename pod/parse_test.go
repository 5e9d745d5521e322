package pod

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// recorder captures handler callbacks as compact strings for comparison:
// "+kind" for starts, "-kind" for ends, "t:text" for text runs.
type recorder struct {
	info   DocumentInfo
	events []string
	errata []*Error
}

func (r *recorder) DocumentStart(info DocumentInfo) { r.info = info }
func (r *recorder) ElementStart(e Element)          { r.events = append(r.events, "+"+e.Kind.String()) }
func (r *recorder) Text(text string)                { r.events = append(r.events, "t:"+text) }
func (r *recorder) ElementEnd(e Element)            { r.events = append(r.events, "-"+e.Kind.String()) }
func (r *recorder) DocumentEnd(errata []*Error)     { r.errata = errata }

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func parsePod(t *testing.T, src string) *recorder {
	t.Helper()
	rec := &recorder{}
	if err := NewParser(testLogger(t)).Parse(strings.NewReader(src), "test.pod", rec); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return rec
}

func wantEvents(t *testing.T, rec *recorder, want ...string) {
	t.Helper()
	if len(rec.events) != len(want) {
		t.Fatalf("event count = %d, want %d\ngot: %v\nwant: %v", len(rec.events), len(want), rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q\nall: %v", i, rec.events[i], want[i], rec.events)
		}
	}
}

func TestParseParagraphs(t *testing.T) {
	rec := parsePod(t, "=pod\n\nFirst para\nsecond line\n\nSecond para\n")
	wantEvents(t, rec,
		"+paragraph", "t:First para\nsecond line", "-paragraph",
		"+paragraph", "t:Second para", "-paragraph",
	)
	if rec.info.ContentFree {
		t.Error("document has content")
	}
	if len(rec.errata) != 0 {
		t.Errorf("unexpected errata: %v", rec.errata)
	}
}

func TestParseVerbatim(t *testing.T) {
	rec := parsePod(t, "=pod\n\n    indented code\n      more\n")
	wantEvents(t, rec, "+verbatim", "t:    indented code\n      more", "-verbatim")
}

func TestParseHeadings(t *testing.T) {
	rec := parsePod(t, "=head1 TOP\n\n=head2 Sub heading\n\n=head3 Deeper\n\n=head4 Deepest\n")
	wantEvents(t, rec,
		"+head1", "t:TOP", "-head1",
		"+head2", "t:Sub heading", "-head2",
		"+head3", "t:Deeper", "-head3",
		"+head4", "t:Deepest", "-head4",
	)
}

func TestParsePodRegions(t *testing.T) {
	src := `package main

// not pod

=head1 EMBEDDED

Documentation paragraph.

=cut

func main() {}
`
	rec := parsePod(t, src)
	wantEvents(t, rec,
		"+head1", "t:EMBEDDED", "-head1",
		"+paragraph", "t:Documentation paragraph.", "-paragraph",
	)
}

func TestParseContentFree(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		rec := parsePod(t, "")
		if !rec.info.ContentFree {
			t.Error("empty input should be content free")
		}
	})
	t.Run("code only", func(t *testing.T) {
		rec := parsePod(t, "plain code\nno pod at all\n")
		if !rec.info.ContentFree {
			t.Error("input without POD should be content free")
		}
	})
}

func TestParseListKinds(t *testing.T) {
	t.Run("bullet", func(t *testing.T) {
		rec := parsePod(t, "=over 4\n\n=item *\n\nBody.\n\n=back\n")
		wantEvents(t, rec,
			"+over-bullet",
			"+item-bullet", "-item-bullet",
			"+paragraph", "t:Body.", "-paragraph",
			"-over-bullet",
		)
	})

	t.Run("bullet with trailing text", func(t *testing.T) {
		rec := parsePod(t, "=over 4\n\n=item * First thing\n\n=back\n")
		wantEvents(t, rec,
			"+over-bullet",
			"+item-bullet", "-item-bullet",
			"+paragraph", "t:First thing", "-paragraph",
			"-over-bullet",
		)
	})

	t.Run("numbered", func(t *testing.T) {
		rec := parsePod(t, "=over 4\n\n=item 1\n\nA.\n\n=item 2\n\nB.\n\n=back\n")
		wantEvents(t, rec,
			"+over-number",
			"+item-number", "-item-number",
			"+paragraph", "t:A.", "-paragraph",
			"+item-number", "-item-number",
			"+paragraph", "t:B.", "-paragraph",
			"-over-number",
		)
		if len(rec.errata) != 0 {
			t.Errorf("unexpected errata: %v", rec.errata)
		}
	})

	t.Run("item zero is a description list", func(t *testing.T) {
		// numbered lists start at 1, so "=item 0" cannot open one
		rec := parsePod(t, "=over 4\n\n=item 0\n\nBody.\n\n=back\n")
		wantEvents(t, rec,
			"+over-text",
			"+item-text", "t:0", "-item-text",
			"+paragraph", "t:Body.", "-paragraph",
			"-over-text",
		)
	})

	t.Run("description", func(t *testing.T) {
		rec := parsePod(t, "=over 4\n\n=item B<term>\n\nBody.\n\n=back\n")
		wantEvents(t, rec,
			"+over-text",
			"+item-text", "+bold", "t:term", "-bold", "-item-text",
			"+paragraph", "t:Body.", "-paragraph",
			"-over-text",
		)
	})

	t.Run("block from paragraph before first item", func(t *testing.T) {
		rec := parsePod(t, "=over 4\n\nJust a remark.\n\n=back\n")
		wantEvents(t, rec,
			"+over-block",
			"+paragraph", "t:Just a remark.", "-paragraph",
			"-over-block",
		)
	})

	t.Run("nested over before item makes outer a block", func(t *testing.T) {
		rec := parsePod(t, "=over 4\n\n=over 4\n\n=item *\n\nInner.\n\n=back\n\n=back\n")
		wantEvents(t, rec,
			"+over-block",
			"+over-bullet",
			"+item-bullet", "-item-bullet",
			"+paragraph", "t:Inner.", "-paragraph",
			"-over-bullet",
			"-over-block",
		)
	})

	t.Run("empty list", func(t *testing.T) {
		rec := parsePod(t, "=over 4\n\n=back\n")
		wantEvents(t, rec, "+over-block", "-over-block")
	})
}

func TestParseListErrata(t *testing.T) {
	t.Run("ordinal mismatch", func(t *testing.T) {
		rec := parsePod(t, "=over 4\n\n=item 1\n\nA.\n\n=item 5\n\nB.\n\n=back\n")
		if len(rec.errata) != 1 {
			t.Fatalf("expected 1 erratum, got %v", rec.errata)
		}
		if !strings.Contains(rec.errata[0].Msg, "expected '=item 2'") {
			t.Errorf("unexpected message: %s", rec.errata[0].Msg)
		}
	})

	t.Run("item outside list", func(t *testing.T) {
		rec := parsePod(t, "=item * stray\n")
		if len(rec.errata) != 1 {
			t.Fatalf("expected 1 erratum, got %v", rec.errata)
		}
	})

	t.Run("unclosed over", func(t *testing.T) {
		rec := parsePod(t, "=over 4\n\n=item *\n\nBody.\n")
		if len(rec.errata) != 1 {
			t.Fatalf("expected 1 erratum, got %v", rec.errata)
		}
		if !strings.Contains(rec.errata[0].Msg, "=back") {
			t.Errorf("unexpected message: %s", rec.errata[0].Msg)
		}
		// scope must still be balanced for the handler
		if rec.events[len(rec.events)-1] != "-over-bullet" {
			t.Errorf("list should be closed at document end: %v", rec.events)
		}
	})
}

func TestParseDataBlocks(t *testing.T) {
	t.Run("for thread", func(t *testing.T) {
		rec := parsePod(t, "=for thread \\h2[raw]\n")
		wantEvents(t, rec, "+data", "t:\\h2[raw]", "-data")
	})

	t.Run("for foreign format", func(t *testing.T) {
		rec := parsePod(t, "=for html <b>x</b>\n")
		wantEvents(t, rec)
	})

	t.Run("begin end thread", func(t *testing.T) {
		rec := parsePod(t, "=begin thread\n\n\\bullet[one]\n\n=end thread\n")
		wantEvents(t, rec, "+data", "t:\\bullet[one]", "-data")
		if len(rec.errata) != 0 {
			t.Errorf("unexpected errata: %v", rec.errata)
		}
	})

	t.Run("begin end mismatch", func(t *testing.T) {
		rec := parsePod(t, "=begin html\n\nstuff\n\n=end xml\n")
		if len(rec.errata) != 1 {
			t.Fatalf("expected 1 erratum, got %v", rec.errata)
		}
		if !strings.Contains(rec.errata[0].Msg, "does not match") {
			t.Errorf("unexpected message: %s", rec.errata[0].Msg)
		}
	})

	t.Run("unclosed begin", func(t *testing.T) {
		rec := parsePod(t, "=begin html\n\nstuff\n")
		if len(rec.errata) != 1 {
			t.Fatalf("expected 1 erratum, got %v", rec.errata)
		}
		if !strings.Contains(rec.errata[0].Msg, "without matching =end") {
			t.Errorf("unexpected message: %s", rec.errata[0].Msg)
		}
	})

	t.Run("end without begin", func(t *testing.T) {
		rec := parsePod(t, "=pod\n\n=end html\n")
		if len(rec.errata) != 1 {
			t.Fatalf("expected 1 erratum, got %v", rec.errata)
		}
	})
}

func TestParseUnknownCommand(t *testing.T) {
	rec := parsePod(t, "=head1 TOP\n\n=frobnicate all the things\n")
	wantEvents(t, rec,
		"+head1", "t:TOP", "-head1",
		"+unknown", "t:all the things", "-unknown",
	)
}
