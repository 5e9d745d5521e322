package convert

import (
	"strings"
	"testing"

	"podthread/config"
)

func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		title    string
		src      string
		expected string
	}{
		{"title only", "{{ .Title }}", "My Manual", "manual.pod", "My Manual"},
		{"source file stem", "{{ .SourceFile }}", "My Manual", "docs/manual.pod", "manual"},
		{"format", "{{ .Format }}", "t", "x.pod", "thread"},
		{"combined", "{{ .Title }}-{{ .SourceFile }}", "Guide", "guide.pod", "Guide-guide"},
		{"sprig function", "{{ .Title | lower }}", "GUIDE", "guide.pod", "guide"},
		{"context", "{{ .Context }}", "t", "x.pod", string(config.OutputNameTemplateFieldName)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := expandTemplate(config.OutputNameTemplateFieldName, tt.template, tt.title, tt.src)
			if err != nil {
				t.Fatalf("expandTemplate: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expandTemplate() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExpandTemplateErrors(t *testing.T) {
	t.Run("parse error", func(t *testing.T) {
		_, err := expandTemplate(config.OutputNameTemplateFieldName, "{{ .Title", "t", "x.pod")
		if err == nil || !strings.Contains(err.Error(), "unable to parse template") {
			t.Errorf("expected a parse error, got %v", err)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		if _, err := expandTemplate(config.OutputNameTemplateFieldName, "{{ .Nope }}", "t", "x.pod"); err == nil {
			t.Error("expected an execution error for unknown field")
		}
	})
}
