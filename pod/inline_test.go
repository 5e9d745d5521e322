package pod

import (
	"strings"
	"testing"
)

// linkRecorder keeps the attributes of every link element it sees.
type linkRecorder struct {
	recorder
	links []Attributes
}

func (r *linkRecorder) ElementStart(e Element) {
	if e.Kind == KindLink {
		r.links = append(r.links, e.Attr)
	}
	r.recorder.ElementStart(e)
}

func TestInlineSequences(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			"plain text",
			"just words",
			[]string{"+paragraph", "t:just words", "-paragraph"},
		},
		{
			"simple codes",
			"B<b> I<i> C<c> F<f>",
			[]string{
				"+paragraph",
				"+bold", "t:b", "-bold", "t: ",
				"+italic", "t:i", "-italic", "t: ",
				"+code", "t:c", "-code", "t: ",
				"+file", "t:f", "-file",
				"-paragraph",
			},
		},
		{
			"nesting",
			"B<I<x>>",
			[]string{"+paragraph", "+bold", "+italic", "t:x", "-italic", "-bold", "-paragraph"},
		},
		{
			"multi bracket",
			"C<< a->b >>",
			[]string{"+paragraph", "+code", "t:a->b", "-code", "-paragraph"},
		},
		{
			"triple bracket",
			"C<<< x >> y >>>",
			[]string{"+paragraph", "+code", "t:x >> y", "-code", "-paragraph"},
		},
		{
			"entity",
			"E<lt>",
			[]string{"+paragraph", "+entity", "-entity", "-paragraph"},
		},
		{
			"zero effect",
			"aZ<>b",
			[]string{"+paragraph", "t:a", "t:b", "-paragraph"},
		},
		{
			"index",
			"X<key>text",
			[]string{"+paragraph", "+index", "t:key", "-index", "t:text", "-paragraph"},
		},
		{
			"non breaking",
			"S<a b>",
			[]string{"+paragraph", "+non-breaking", "t:a b", "-non-breaking", "-paragraph"},
		},
		{
			"unknown letter",
			"Q<zap>",
			[]string{"+paragraph", "+unknown-inline", "t:zap", "-unknown-inline", "-paragraph"},
		},
		{
			"lone angle is text",
			"a < b",
			[]string{"+paragraph", "t:a < b", "-paragraph"},
		},
		{
			"multi bracket needs space",
			"C<<x>>",
			[]string{"+paragraph", "+code", "t:<x", "-code", "t:>", "-paragraph"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := parsePod(t, "=pod\n\n"+tt.src+"\n")
			wantEvents(t, rec, tt.want...)
		})
	}
}

func TestInlineUnterminated(t *testing.T) {
	rec := parsePod(t, "=pod\n\nbroken B<text\n")
	if len(rec.errata) != 1 {
		t.Fatalf("expected 1 erratum, got %v", rec.errata)
	}
	if !strings.Contains(rec.errata[0].Msg, "unterminated") {
		t.Errorf("unexpected message: %s", rec.errata[0].Msg)
	}
	// content up to end of input still delivered
	wantEvents(t, rec, "+paragraph", "t:broken ", "+bold", "t:text", "-bold", "-paragraph")
}

func parseLinks(t *testing.T, src string) *linkRecorder {
	t.Helper()
	rec := &linkRecorder{}
	run := &parseRun{parser: NewParser(testLogger(t)), h: rec, name: "test.pod"}
	run.inline(src, 1)
	if len(run.errata) != 0 {
		t.Fatalf("unexpected errata: %v", run.errata)
	}
	return rec
}

func TestLinkTargets(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		linkType LinkType
		to       string
		section  string
		explicit bool
		text     string // expected display text event
	}{
		{"url", "L<http://example.com/>", LinkURL, "http://example.com/", "", false, "t:http://example.com/"},
		{"https url", "L<https://a.example.com/path?q=1>", LinkURL, "https://a.example.com/path?q=1", "", false, "t:https://a.example.com/path?q=1"},
		{"url with text", "L<site|http://example.com/>", LinkURL, "http://example.com/", "", true, "t:site"},
		{"man page", "L<ls(1)>", LinkMan, "ls(1)", "", false, "t:ls(1)"},
		{"man section", "L<crontab(5)>", LinkMan, "crontab(5)", "", false, "t:crontab(5)"},
		{"pod document", "L<Other::Module>", LinkPod, "Other::Module", "", false, "t:Other::Module"},
		{"pod with section", "L<Other::Module/Usage>", LinkPod, "Other::Module", "Usage", false, `t:"Usage" in Other::Module`},
		{"local section", "L</DESCRIPTION>", LinkPod, "", "DESCRIPTION", false, `t:"DESCRIPTION"`},
		{"quoted section", `L<"SEE ALSO">`, LinkPod, "", "SEE ALSO", false, `t:"SEE ALSO"`},
		{"quoted subsection", `L<Module/"The Deep End">`, LinkPod, "Module", "The Deep End", false, `t:"The Deep End" in Module`},
		{"section with text", "L<the intro|/DESCRIPTION>", LinkPod, "", "DESCRIPTION", true, "t:the intro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := parseLinks(t, tt.src)
			if len(rec.links) != 1 {
				t.Fatalf("expected 1 link, got %d: %v", len(rec.links), rec.events)
			}
			a := rec.links[0]
			if a.LinkType != tt.linkType {
				t.Errorf("LinkType = %v, want %v", a.LinkType, tt.linkType)
			}
			if a.To != tt.to {
				t.Errorf("To = %q, want %q", a.To, tt.to)
			}
			if a.Section != tt.section {
				t.Errorf("Section = %q, want %q", a.Section, tt.section)
			}
			if a.ExplicitText != tt.explicit {
				t.Errorf("ExplicitText = %v, want %v", a.ExplicitText, tt.explicit)
			}
			found := false
			for _, ev := range rec.events {
				if ev == tt.text {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("display text %q missing from events: %v", tt.text, rec.events)
			}
		})
	}
}

func TestLinkFormattedDisplayText(t *testing.T) {
	rec := parseLinks(t, "L<B<bold site>|http://example.com/>")
	want := []string{"+link", "+bold", "t:bold site", "-bold", "-link"}
	wantEvents(t, &rec.recorder, want...)
}

func TestLinkWhitespaceNormalized(t *testing.T) {
	rec := parseLinks(t, "L<Other::Module/Some\n  Section>")
	if len(rec.links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(rec.links))
	}
	if rec.links[0].Section != "Some Section" {
		t.Errorf("Section = %q, want %q", rec.links[0].Section, "Some Section")
	}
}
