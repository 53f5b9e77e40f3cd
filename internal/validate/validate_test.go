package validate

import (
	"strings"
	"testing"

	"github.com/sendrec/videoconsent/internal/options"
)

func TestOption(t *testing.T) {
	tests := []struct {
		name   string
		option string
		input  string
		want   string
	}{
		{"valid src", options.Src, "https://youtu.be/dQw4w9WgXcQ", ""},
		{"empty", options.Text, "", ""},
		{"src at limit", options.Src, strings.Repeat("a", MaxURLLength), ""},
		{"src over limit", options.Src, strings.Repeat("a", MaxURLLength+1), "src must be 2048 characters or fewer"},
		{"text over limit", options.Text, strings.Repeat("a", MaxTextLength+1), "text must be 1000 characters or fewer"},
		{"keyword over limit", options.BackdropColor, strings.Repeat("a", MaxKeywordLength+1), "backdrop-color must be 64 characters or fewer"},
	}
	for _, tt := range tests {
		if got := Option(tt.option, tt.input); got != tt.want {
			t.Errorf("Option(%q [len=%d]) = %q, want %q", tt.name, len(tt.input), got, tt.want)
		}
	}
}

func TestAttributesReportsFirstProblemByName(t *testing.T) {
	attrs := map[string]string{
		options.Text:     strings.Repeat("x", MaxTextLength+1),
		options.Autoplay: strings.Repeat("x", MaxKeywordLength+1),
		options.Src:      "https://vimeo.com/1",
	}
	if got := Attributes(attrs); got != "autoplay must be 64 characters or fewer" {
		t.Errorf("Attributes = %q", got)
	}
	if got := Attributes(map[string]string{options.Src: "https://vimeo.com/1"}); got != "" {
		t.Errorf("expected no problem, got %q", got)
	}
}

func TestGlobalOptions(t *testing.T) {
	if got := GlobalOptions(map[string]any{options.TextSize: 1.5, options.DarkMode: true}); got != "" {
		t.Errorf("expected scalars to pass, got %q", got)
	}
	if got := GlobalOptions(map[string]any{options.Picture: strings.Repeat("p", MaxURLLength+1)}); got == "" {
		t.Error("expected an oversized picture to fail")
	}
}

func TestFieldLimitsCoversEveryOption(t *testing.T) {
	limits := FieldLimits()
	for _, name := range options.Names {
		if limits[name] == 0 {
			t.Errorf("missing limit for %q", name)
		}
	}
	if limits[options.Src] != MaxURLLength {
		t.Errorf("src limit = %d", limits[options.Src])
	}
}
