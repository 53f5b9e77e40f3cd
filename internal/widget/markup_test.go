package widget

import (
	"strings"
	"testing"

	"github.com/sendrec/videoconsent/internal/options"
	"github.com/sendrec/videoconsent/internal/provider"
)

func TestEmbedURL(t *testing.T) {
	tests := []struct {
		name          string
		provider      provider.Provider
		origin        string
		autoplay      bool
		justConfirmed bool
		want          string
	}{
		{"youtube plain", provider.YouTube, "https://example.org", false, false,
			"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?rel=0&enablejsapi=1&origin=https%3A%2F%2Fexample.org"},
		{"youtube autoplay is muted", provider.YouTube, "", true, false,
			"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?rel=0&enablejsapi=1&autoplay=1&mute=1"},
		{"youtube just confirmed", provider.YouTube, "", false, true,
			"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?rel=0&enablejsapi=1&autoplay=1"},
		{"youtube both", provider.YouTube, "", true, true,
			"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?rel=0&enablejsapi=1&autoplay=1&mute=1"},
		{"vimeo plain", provider.Vimeo, "https://example.org", false, false,
			"https://player.vimeo.com/video/76979871?"},
		{"vimeo autoplay is background", provider.Vimeo, "", true, false,
			"https://player.vimeo.com/video/76979871?autoplay=1&background=1"},
		{"vimeo just confirmed", provider.Vimeo, "", false, true,
			"https://player.vimeo.com/video/76979871?autoplay=1"},
		{"none", provider.None, "", true, true, ""},
	}

	ids := map[provider.Provider]string{
		provider.YouTube: "dQw4w9WgXcQ",
		provider.Vimeo:   "76979871",
		provider.None:    "",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EmbedURL(tt.provider, ids[tt.provider], tt.origin, tt.autoplay, tt.justConfirmed)
			if got != tt.want {
				t.Errorf("EmbedURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThumbnailURL(t *testing.T) {
	got := ThumbnailURL("https://cdn.example.com/{provider}/{videoId}.jpg?v={videoId}", provider.YouTube, "dQw4w9WgXcQ")
	want := "https://cdn.example.com/youtube/dQw4w9WgXcQ.jpg?v=dQw4w9WgXcQ"
	if got != want {
		t.Errorf("ThumbnailURL() = %q, want %q", got, want)
	}
}

func TestCSSURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/a.jpg", `url("https://example.com/a.jpg")`},
		{"/images/poster.png", `url("/images/poster.png")`},
		{`https://example.com/a.jpg");}body{x:url("`, `url("https://example.com/a.jpg%22%29;%7Dbody%7Bx:url%28%22")`},
		{"javascript:alert(1)", ""},
		{"data:image/png;base64,AAAA", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cssURL(tt.raw); got != tt.want {
			t.Errorf("cssURL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCSSValueFallsBackOnUnexpectedShape(t *testing.T) {
	tests := []struct {
		value   string
		pattern string
		want    string
	}{
		{"4/3", options.AspectRatio, "4/3"},
		{"1.5", options.AspectRatio, "1.5"},
		{"16/9; color: red", options.AspectRatio, "16/9"},
		{"column", options.TextOrientation, "column"},
		{"row}", options.TextOrientation, "row"},
		{"12px", options.BlurStrength, "12px"},
		{"12", options.BlurStrength, "8px"},
		{"#123456", options.BackdropColor, "#123456"},
		{"rgba(10, 20, 30, 0.2)", options.BackdropColor, "rgba(10, 20, 30, 0.2)"},
		{"url(x)", options.BackdropColor, "rgba(0, 0, 0, 0.5)"},
	}

	for _, tt := range tests {
		view := options.View{Instance: map[string]string{tt.pattern: tt.value}}
		s, err := resolveSettings(view)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got string
		switch tt.pattern {
		case options.AspectRatio:
			got = s.aspectRatio
		case options.TextOrientation:
			got = s.textOrientation
		case options.BlurStrength:
			got = s.blurStrength
		case options.BackdropColor:
			got = s.backdropColor
		}
		if got != tt.want {
			t.Errorf("%s=%q resolved to %q, want %q", tt.pattern, tt.value, got, tt.want)
		}
	}
}

func promptCSS(t *testing.T, attrs map[string]string) string {
	t.Helper()
	attrs[options.Src] = youtubeWatchURL
	w := New(newCookieContext(memoryJar{}), attrs, WithInstanceID("inst"))
	if err := w.Mount(); err != nil {
		t.Fatal(err)
	}
	return parseHTML(t, w.Output().HTML).Find("style").Text()
}

func TestStylesheet(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		css := promptCSS(t, map[string]string{})
		for _, want := range []string{
			"aspect-ratio: 16/9;",
			"flex-direction: row;",
			"font-size: 1.5rem;",
			"width: 48px; height: 48px; fill: #fff;",
			"background: #666;",
		} {
			if !strings.Contains(css, want) {
				t.Errorf("expected %q in stylesheet:\n%s", want, css)
			}
		}
		if strings.Contains(css, "vpc-overlay") {
			t.Error("expected no overlay rule by default")
		}
	})

	t.Run("dark mode and hidden icon", func(t *testing.T) {
		css := promptCSS(t, map[string]string{options.DarkMode: "true", options.ShowIcon: "false", options.IconSize: "32"})
		if !strings.Contains(css, "display: none; width: 32px; height: 32px; fill: #000;") {
			t.Errorf("unexpected icon rule:\n%s", css)
		}
	})

	t.Run("blur and backdrop", func(t *testing.T) {
		css := promptCSS(t, map[string]string{options.Blur: "true", options.Backdrop: "1", options.BlurStrength: "4px"})
		if !strings.Contains(css, "backdrop-filter: blur(4px); background: rgba(0, 0, 0, 0.5);") {
			t.Errorf("unexpected overlay rule:\n%s", css)
		}
	})

	t.Run("picture wins over thumbnail proxy", func(t *testing.T) {
		css := promptCSS(t, map[string]string{
			options.Picture:        "https://example.com/poster.jpg",
			options.ThumbnailProxy: "/thumbnails/{provider}/{videoId}",
		})
		if !strings.Contains(css, `url("https://example.com/poster.jpg") center / cover no-repeat`) {
			t.Errorf("expected picture background:\n%s", css)
		}
	})

	t.Run("thumbnail proxy", func(t *testing.T) {
		css := promptCSS(t, map[string]string{options.ThumbnailProxy: "/thumbnails/{provider}/{videoId}"})
		if !strings.Contains(css, `url("/thumbnails/youtube/dQw4w9WgXcQ")`) {
			t.Errorf("expected proxied thumbnail:\n%s", css)
		}
	})
}

func TestPromptOverlayElement(t *testing.T) {
	attrs := map[string]string{options.Src: vimeoURL, options.Backdrop: "true"}
	w := New(newCookieContext(memoryJar{}), attrs)
	if err := w.Mount(); err != nil {
		t.Fatal(err)
	}
	doc := parseHTML(t, w.Output().HTML)
	if doc.Find(".vpc-overlay").Length() != 1 {
		t.Error("expected overlay element")
	}
	if p, _ := doc.Find(".vpc-container").Attr("data-provider"); p != "vimeo" {
		t.Errorf("expected data-provider vimeo, got %q", p)
	}
}

func TestPlayerTitleNamesProvider(t *testing.T) {
	jar := memoryJar{"vimeo-video-consent": {Name: "vimeo-video-consent", Value: "true"}}
	w := New(newCookieContext(jar), map[string]string{options.Src: vimeoURL})
	if err := w.Mount(); err != nil {
		t.Fatal(err)
	}
	title, _ := parseHTML(t, w.Output().HTML).Find("iframe").Attr("title")
	if title != "Vimeo video player" {
		t.Errorf("expected Vimeo title, got %q", title)
	}
}
