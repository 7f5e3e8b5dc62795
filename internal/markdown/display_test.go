package markdown

import (
	"strings"
	"testing"
)

func TestFormatForDisplay(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"uno\ndos", "uno\n\ndos"},
		{"Puntos:• a• b", "Puntos:\n• a\n• b"},
		{"sin cambios", "sin cambios"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FormatForDisplay(tt.in); got != tt.want {
			t.Errorf("FormatForDisplay(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPartialAddsCursor(t *testing.T) {
	got := FormatPartial("hola\n")
	if !strings.HasSuffix(got, StreamingCursor) {
		t.Fatalf("missing cursor: %q", got)
	}
	if got != "hola\n\n"+StreamingCursor {
		t.Errorf("unexpected partial %q", got)
	}
}

func TestRendererRendersPlainStyle(t *testing.T) {
	r, err := NewRenderer(&RendererConfig{Width: 60, Style: "notty"})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}

	out, err := r.Render("**Plazo**: 30 días")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "Plazo") || !strings.Contains(out, "30 días") {
		t.Errorf("rendered output lost content: %q", out)
	}

	empty, err := r.Render("")
	if err != nil || empty != "" {
		t.Errorf("empty input should render empty, got %q, %v", empty, err)
	}
}

func TestCollapseBlankLines(t *testing.T) {
	got := collapseBlankLines("a\n\n\n\nb")
	if got != "a\n\nb" {
		t.Errorf("collapseBlankLines = %q", got)
	}
}
