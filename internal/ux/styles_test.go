package ux

import (
	"strings"
	"testing"
)

func TestPlainStylesRenderUnchanged(t *testing.T) {
	s := PlainStyles()
	if !s.Plain() {
		t.Fatal("PlainStyles().Plain() = false")
	}

	for _, status := range []string{"healthy", "degraded", "unhealthy", "custom"} {
		if got := s.Status(status); got != status {
			t.Errorf("Status(%q) = %q", status, got)
		}
	}
	if got := s.Hex("#FF4444").Render("fire"); got != "fire" {
		t.Errorf("Hex().Render() = %q", got)
	}
}

func TestField(t *testing.T) {
	s := PlainStyles()

	tests := []struct {
		label string
		value string
		width int
		want  string
	}{
		{"Email", "a@b.c", 8, "Email:    a@b.c"},
		{"Role", "leader", 4, "Role: leader"},
		{"Community", "x", 2, "Community: x"},
	}

	for _, tt := range tests {
		if got := s.Field(tt.label, tt.value, tt.width); got != tt.want {
			t.Errorf("Field(%q, %q, %d) = %q, want %q", tt.label, tt.value, tt.width, got, tt.want)
		}
	}
}

func TestDefaultStylesKeepText(t *testing.T) {
	s := DefaultStyles()
	if s.Plain() {
		t.Fatal("DefaultStyles().Plain() = true")
	}
	if got := s.Status("healthy"); !strings.Contains(got, "healthy") {
		t.Errorf("Status() dropped text: %q", got)
	}
}
