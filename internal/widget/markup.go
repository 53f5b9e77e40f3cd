package widget

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sendrec/videoconsent/internal/options"
	"github.com/sendrec/videoconsent/internal/provider"
)

const iframeAllow = "accelerometer; autoplay; encrypted-media; gyroscope; picture-in-picture"

type settings struct {
	autoplay          bool
	autoplayOnConfirm bool
	showIcon          bool
	darkMode          bool
	blur              bool
	backdrop          bool
	text              template.HTML
	picture           string
	thumbnailProxy    string
	aspectRatio       string
	textOrientation   string
	textAlign         string
	blurStrength      string
	backdropColor     string
	textSize          float64
	iconSize          float64
}

func resolveSettings(view options.View) (settings, error) {
	s := settings{
		text:            SanitizeText(view.String(options.Text)),
		picture:         view.String(options.Picture),
		thumbnailProxy:  view.String(options.ThumbnailProxy),
		aspectRatio:     cssValue(view.String(options.AspectRatio), aspectRatioPattern, options.Builtin[options.AspectRatio]),
		textOrientation: cssValue(view.String(options.TextOrientation), keywordPattern, options.Builtin[options.TextOrientation]),
		textAlign:       cssValue(view.String(options.TextAlign), keywordPattern, options.Builtin[options.TextAlign]),
		blurStrength:    cssValue(view.String(options.BlurStrength), lengthPattern, options.Builtin[options.BlurStrength]),
		backdropColor:   cssValue(view.String(options.BackdropColor), colorPattern, options.Builtin[options.BackdropColor]),
		textSize:        view.Float(options.TextSize),
		iconSize:        view.Float(options.IconSize),
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{options.Autoplay, &s.autoplay},
		{options.ShowIcon, &s.showIcon},
		{options.DarkMode, &s.darkMode},
		{options.Blur, &s.blur},
		{options.Backdrop, &s.backdrop},
		{options.AutoplayOnConfirm, &s.autoplayOnConfirm},
	}
	for _, f := range flags {
		v, err := view.Bool(f.name)
		if err != nil {
			return settings{}, err
		}
		*f.dst = v
	}
	return s, nil
}

var (
	aspectRatioPattern = regexp.MustCompile(`^\d+(\.\d+)?\s*/\s*\d+(\.\d+)?$|^\d+(\.\d+)?$|^auto$`)
	keywordPattern     = regexp.MustCompile(`^[a-z-]+$`)
	lengthPattern      = regexp.MustCompile(`^\d+(\.\d+)?(px|rem|em)$`)
	colorPattern       = regexp.MustCompile(`^(#[0-9A-Fa-f]{3,8}|[a-z]+|rgba?\(\s*[\d.%]+\s*,\s*[\d.%]+\s*,\s*[\d.%]+\s*(,\s*[\d.%]+\s*)?\))$`)
)

// cssValue keeps value when it has the expected shape and falls back to the
// built-in default otherwise; option values end up inside a stylesheet.
func cssValue(value string, pattern *regexp.Regexp, fallback any) string {
	value = strings.TrimSpace(value)
	if pattern.MatchString(value) {
		return value
	}
	return fmt.Sprint(fallback)
}

var cssURLEscaper = strings.NewReplacer(
	`"`, "%22", `'`, "%27", "(", "%28", ")", "%29", `\`, "%5C",
	" ", "%20", "\n", "", "\r", "", "<", "%3C", ">", "%3E",
)

// cssURL returns a url() for http(s) and relative references, "" otherwise.
func cssURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || raw == "" {
		return ""
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return `url("` + cssURLEscaper.Replace(u.String()) + `")`
}

// ThumbnailURL fills a thumbnail proxy template. {videoId} and {provider}
// are replaced verbatim.
func ThumbnailURL(tmpl string, p provider.Provider, videoID string) string {
	return strings.NewReplacer("{videoId}", videoID, "{provider}", string(p)).Replace(tmpl)
}

// EmbedURL builds the iframe source. Autoplay requested by the page is always
// muted; autoplay that only follows a fresh confirmation is not.
func EmbedURL(p provider.Provider, videoID, origin string, autoplay, justConfirmed bool) string {
	id := url.PathEscape(videoID)
	play := autoplay || justConfirmed

	switch p {
	case provider.YouTube:
		var b strings.Builder
		b.WriteString("https://www.youtube-nocookie.com/embed/" + id + "?rel=0&enablejsapi=1")
		if origin != "" {
			b.WriteString("&origin=" + url.QueryEscape(origin))
		}
		if play {
			b.WriteString("&autoplay=1")
		}
		if autoplay {
			b.WriteString("&mute=1")
		}
		return b.String()
	case provider.Vimeo:
		var params []string
		if play {
			params = append(params, "autoplay=1")
		}
		if autoplay {
			params = append(params, "background=1")
		}
		return "https://player.vimeo.com/video/" + id + "?" + strings.Join(params, "&")
	default:
		return ""
	}
}

type markupInput struct {
	instanceID    string
	nonce         string
	origin        string
	state         State
	provider      provider.Provider
	videoID       string
	settings      settings
	justConfirmed bool
}

func (in markupInput) background() string {
	if in.settings.picture != "" {
		return cssURL(in.settings.picture)
	}
	if in.settings.thumbnailProxy != "" {
		return cssURL(ThumbnailURL(in.settings.thumbnailProxy, in.provider, in.videoID))
	}
	return ""
}

func (in markupInput) stylesheet() template.CSS {
	s := in.settings
	scope := `[data-instance="` + in.instanceID + `"]`
	fg := "#fff"
	if s.darkMode {
		fg = "#000"
	}
	background := "#666"
	if img := in.background(); img != "" {
		background = img + " center / cover no-repeat, #666"
	}
	iconDisplay := "block"
	if !s.showIcon {
		iconDisplay = "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s { display: block; position: relative; background: %s; cursor: pointer; width: 100%%; aspect-ratio: %s; overflow: hidden; }\n",
		scope, background, s.aspectRatio)
	fmt.Fprintf(&b, "%s .vpc-container, %s .vpc-container iframe { height: 100%%; width: 100%%; border: 0; }\n", scope, scope)
	fmt.Fprintf(&b, "%s .vpc-controls { display: flex; position: absolute; left: 50%%; top: 50%%; transform: translate(-50%%, -50%%); align-items: center; flex-direction: %s; text-align: %s; z-index: 1; }\n",
		scope, s.textOrientation, s.textAlign)
	fmt.Fprintf(&b, "%s .vpc-controls span { font-size: %srem; margin: 0.3rem; color: %s; }\n", scope, formatNumber(s.textSize), fg)
	fmt.Fprintf(&b, "%s .vpc-controls svg { display: %s; width: %spx; height: %spx; fill: %s; }\n",
		scope, iconDisplay, formatNumber(s.iconSize), formatNumber(s.iconSize), fg)
	if s.blur || s.backdrop {
		b.WriteString(scope + " .vpc-overlay { position: absolute; inset: 0;")
		if s.blur {
			b.WriteString(" backdrop-filter: blur(" + s.blurStrength + ");")
		}
		if s.backdrop {
			b.WriteString(" background: " + s.backdropColor + ";")
		}
		b.WriteString(" }\n")
	}
	return template.CSS(b.String())
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type promptData struct {
	Nonce    string
	CSS      template.CSS
	Provider string
	Overlay  bool
	Icon     template.HTML
	Text     template.HTML
}

type playerData struct {
	Nonce   string
	CSS     template.CSS
	VideoID string
	Src     string
	Allow   string
	Title   string
}

type hostData struct {
	InstanceID string
	Attributes string
	Provider   string
	State      string
	Hidden     bool
	Inner      template.HTML
}

var promptTemplate = template.Must(template.New("prompt").Parse(`<style nonce="{{.Nonce}}">{{.CSS}}</style>
<div class="vpc-container" data-action="confirm-consent" data-provider="{{.Provider}}">
    {{- if .Overlay}}<div class="vpc-overlay"></div>{{end}}
    <div class="vpc-controls">
        {{.Icon}}
        <span>{{.Text}}</span>
    </div>
</div>`))

var playerTemplate = template.Must(template.New("player").Parse(`<style nonce="{{.Nonce}}">{{.CSS}}</style>
<div class="vpc-container">
    <iframe id="player-{{.VideoID}}" src="{{.Src}}" width="560" height="315" frameborder="0" allow="{{.Allow}}" title="{{.Title}}" allowfullscreen webkitallowfullscreen mozallowfullscreen></iframe>
</div>`))

var hostTemplate = template.Must(template.New("host").Parse(
	`<video-provider-consent data-instance="{{.InstanceID}}" data-provider="{{.Provider}}" data-state="{{.State}}" data-attributes="{{.Attributes}}"{{if .Hidden}} hidden{{end}}>{{.Inner}}</video-provider-consent>`))

const (
	youtubeIcon = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 576 512" aria-hidden="true"><path d="M549.655 124.083c-6.281-23.65-24.787-42.276-48.284-48.597C458.781 64 288 64 288 64S117.22 64 74.629 75.486c-23.497 6.322-42.003 24.947-48.284 48.597-11.412 42.867-11.412 132.305-11.412 132.305s0 89.438 11.412 132.305c6.281 23.65 24.787 41.5 48.284 47.821C117.22 448 288 448 288 448s170.78 0 213.371-11.486c23.497-6.321 42.003-24.171 48.284-47.821 11.412-42.867 11.412-132.305 11.412-132.305s0-89.438-11.412-132.305zm-317.51 213.508V175.185l142.739 81.205-142.739 81.201z"></path></svg>`
	playIcon    = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" aria-hidden="true"><path d="M8 5v14l11-7z"></path></svg>`
)

func renderMarkup(in markupInput) (template.HTML, error) {
	var buf bytes.Buffer
	var err error

	switch in.state {
	case AwaitingConsent:
		icon := playIcon
		if in.provider == provider.YouTube {
			icon = youtubeIcon
		}
		err = promptTemplate.Execute(&buf, promptData{
			Nonce:    in.nonce,
			CSS:      in.stylesheet(),
			Provider: string(in.provider),
			Overlay:  in.settings.blur || in.settings.backdrop,
			Icon:     template.HTML(icon),
			Text:     in.settings.text,
		})
	case Active:
		err = playerTemplate.Execute(&buf, playerData{
			Nonce:   in.nonce,
			CSS:     in.stylesheet(),
			VideoID: in.videoID,
			Src:     EmbedURL(in.provider, in.videoID, in.origin, in.settings.autoplay, in.justConfirmed),
			Allow:   iframeAllow,
			Title:   in.provider.DisplayName() + " video player",
		})
	default:
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("render %s markup: %w", in.state, err)
	}
	return template.HTML(buf.String()), nil
}

func renderHost(data hostData) (template.HTML, error) {
	var buf bytes.Buffer
	if err := hostTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render widget host: %w", err)
	}
	return template.HTML(buf.String()), nil
}
