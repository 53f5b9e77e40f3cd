package validate

import (
	"fmt"
	"sort"

	"github.com/spf13/cast"

	"github.com/sendrec/videoconsent/internal/options"
)

// Option value length limits. URLs get room for long query strings; every
// other option is a keyword, number or colour.
const (
	MaxURLLength     = 2048
	MaxTextLength    = 1000
	MaxKeywordLength = 64
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

// OptionLimit is the longest value accepted for the named option.
func OptionLimit(name string) int {
	switch name {
	case options.Src, options.Picture, options.ThumbnailProxy:
		return MaxURLLength
	case options.Text:
		return MaxTextLength
	default:
		return MaxKeywordLength
	}
}

func Option(name, value string) string {
	return checkLen(value, OptionLimit(name), name)
}

// Attributes checks per-instance attributes and returns the first problem in
// name order, or "".
func Attributes(attrs map[string]string) string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if msg := Option(name, attrs[name]); msg != "" {
			return msg
		}
	}
	return ""
}

// GlobalOptions is Attributes for the process-wide option object, whose
// values may be any JSON scalar.
func GlobalOptions(values map[string]any) string {
	attrs := make(map[string]string, len(values))
	for name, v := range values {
		attrs[name] = cast.ToString(v)
	}
	return Attributes(attrs)
}

// FieldLimits returns option names mapped to their max lengths.
func FieldLimits() map[string]int {
	limits := make(map[string]int, len(options.Names))
	for _, name := range options.Names {
		limits[name] = OptionLimit(name)
	}
	return limits
}
