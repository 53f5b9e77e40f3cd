package widget

import "testing"

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Load video", "Load video"},
		{"escapes text", "a < b & c", "a &lt; b &amp; c"},
		{"keeps inline markup", "<b>Play</b> <em>now</em>", "<b>Play</b> <em>now</em>"},
		{"line break", "line<br>break", "line<br>break"},
		{"drops script", "<script>alert(1)</script>Hi", "Hi"},
		{"drops style", "<style>body{}</style>Hi", "Hi"},
		{"unwraps block elements", "<div><p>Hi</p></div>", "Hi"},
		{"drops img", `<img src=x onerror="alert(1)">`, ""},
		{"link", `See <a href="/privacy" target="_blank" onclick="x()">policy</a>`,
			`See <a href="/privacy" target="_blank" rel="noopener noreferrer">policy</a>`},
		{"javascript link", `<a href="javascript:alert(1)">x</a>`, `<a rel="noopener noreferrer">x</a>`},
		{"bad target", `<a href="https://example.com" target="top">x</a>`,
			`<a href="https://example.com" rel="noopener noreferrer">x</a>`},
		{"strips span attributes", `<span style="color:red" class="x">y</span>`, "<span>y</span>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(SanitizeText(tt.in)); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
