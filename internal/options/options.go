// Package options resolves widget options through three tiers: the
// instance's own attributes, the process-wide global object and the
// built-in defaults.
package options

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

const (
	Src               = "src"
	Autoplay          = "autoplay"
	Text              = "text"
	Picture           = "picture"
	AspectRatio       = "aspect-ratio"
	TextOrientation   = "text-orientation"
	TextSize          = "text-size"
	IconSize          = "icon-size"
	ShowIcon          = "show-icon"
	DarkMode          = "dark-mode"
	Blur              = "blur"
	BlurStrength      = "blur-strength"
	Backdrop          = "backdrop"
	BackdropColor     = "backdrop-color"
	AutoplayOnConfirm = "autoplay-on-confirm"
	ThumbnailProxy    = "thumbnail-proxy"
	TextAlign         = "text-align"
)

// Names lists every option a widget understands, in documentation order.
var Names = []string{
	Src, Autoplay, Text, Picture, AspectRatio, TextOrientation, TextSize,
	IconSize, ShowIcon, DarkMode, Blur, BlurStrength, Backdrop, BackdropColor,
	AutoplayOnConfirm, ThumbnailProxy, TextAlign,
}

var Builtin = map[string]any{
	Src:               "",
	Autoplay:          false,
	Text:              "",
	Picture:           "",
	AspectRatio:       "16/9",
	TextOrientation:   "row",
	TextSize:          1.5,
	IconSize:          48.0,
	ShowIcon:          true,
	DarkMode:          false,
	Blur:              false,
	BlurStrength:      "8px",
	Backdrop:          false,
	BackdropColor:     "rgba(0, 0, 0, 0.5)",
	AutoplayOnConfirm: true,
	ThumbnailProxy:    "",
	TextAlign:         "center",
}

var ErrInvalidBool = errors.New("invalid boolean option")

func IsKnown(name string) bool {
	_, ok := Builtin[name]
	return ok
}

type Source int

const (
	FromNowhere Source = iota
	FromInstance
	FromGlobal
	FromBuiltin
)

type Getter interface {
	Get(name string) (any, bool)
}

// Resolve looks name up in instance, then global, then builtin. A present
// instance attribute always wins, even when empty. Nothing is cached: the
// global object may change between calls.
func Resolve(name string, instance map[string]string, global Getter, builtin map[string]any) (any, Source) {
	if v, ok := instance[name]; ok {
		return v, FromInstance
	}
	if global != nil {
		if v, ok := global.Get(name); ok {
			return v, FromGlobal
		}
	}
	if v, ok := builtin[name]; ok {
		return v, FromBuiltin
	}
	return nil, FromNowhere
}

// View binds one instance's attributes to the global object.
type View struct {
	Instance map[string]string
	Global   Getter
}

func (v View) Value(name string) any {
	value, _ := Resolve(name, v.Instance, v.Global, Builtin)
	return value
}

func (v View) String(name string) string {
	return cast.ToString(v.Value(name))
}

// Bool resolves a boolean option. Unparseable values are returned as errors
// rather than replaced by the default.
func (v View) Bool(name string) (bool, error) {
	b, err := ParseBool(v.Value(name))
	if err != nil {
		return false, fmt.Errorf("option %s: %w", name, err)
	}
	return b, nil
}

// Float resolves a numeric option, reading the leading number of string
// values ("2rem" is 2) and falling back to the built-in default otherwise.
func (v View) Float(name string) float64 {
	if f, ok := toFloat(v.Value(name)); ok {
		return f
	}
	f, _ := toFloat(Builtin[name])
	return f
}

var leadingNumber = regexp.MustCompile(`^\s*[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)

func toFloat(value any) (float64, bool) {
	if s, ok := value.(string); ok {
		m := leadingNumber.FindString(s)
		if m == "" {
			return 0, false
		}
		f, err := cast.ToFloat64E(strings.TrimSpace(m))
		return f, err == nil
	}
	f, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseBool accepts a literal bool, "true"/"false" in any case, or any JSON
// document, which is reduced to its truthiness. An empty string, as sent for
// a bare boolean attribute, is false.
func ParseBool(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "":
			return false, nil
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return false, fmt.Errorf("%w: %q", ErrInvalidBool, v)
		}
		return truthy(decoded), nil
	default:
		if f, err := cast.ToFloat64E(v); err == nil {
			return truthy(f), nil
		}
		return true, nil
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	default:
		return true
	}
}
