// Package provider classifies video URLs into a hosting provider and a video ID.
package provider

import (
	"fmt"
	"regexp"
	"strings"
)

type Provider string

const (
	YouTube Provider = "youtube"
	Vimeo   Provider = "vimeo"
	None    Provider = "none"
)

const youtubeIDLength = 11

var (
	youtubePattern = regexp.MustCompile(`^.*(youtu\.be/|/v/|/embed/|/watch\?v=|&v=)([^#&?/]*).*`)
	vimeoPattern   = regexp.MustCompile(`^.*(vimeo\.com/)((video/)|(channels/[A-z]+/)|(groups/[A-z]+/videos/))?([0-9]+)`)

	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	vimeoIDPattern   = regexp.MustCompile(`^[0-9]+$`)
)

// DisplayName is the name consent platforms register the provider's service under.
func (p Provider) DisplayName() string {
	switch p {
	case YouTube:
		return "YouTube"
	case Vimeo:
		return "Vimeo"
	default:
		return ""
	}
}

func (p Provider) String() string {
	return string(p)
}

// Classify reports which provider a URL belongs to. YouTube is checked
// before Vimeo, so a URL matching both is YouTube.
func Classify(url string) Provider {
	if youtubePattern.MatchString(url) {
		return YouTube
	}
	if vimeoPattern.MatchString(url) {
		return Vimeo
	}
	return None
}

// ExtractVideoID returns the provider-specific video ID in url, or "" when
// the URL has no usable ID for that provider.
func ExtractVideoID(url string, p Provider) string {
	switch p {
	case YouTube:
		match := youtubePattern.FindStringSubmatch(url)
		if match == nil || len(match[2]) != youtubeIDLength {
			return ""
		}
		return match[2]
	case Vimeo:
		match := vimeoPattern.FindStringSubmatch(url)
		if match == nil || match[6] == "" {
			return ""
		}
		return match[6]
	default:
		return ""
	}
}

// Parse classifies url and extracts its video ID in one step.
func Parse(url string) (Provider, string) {
	p := Classify(url)
	return p, ExtractVideoID(url, p)
}

// ValidID checks that id has the shape the provider issues. It is stricter
// than extraction and guards values arriving outside a URL.
func ValidID(p Provider, id string) bool {
	switch p {
	case YouTube:
		return youtubeIDPattern.MatchString(id)
	case Vimeo:
		return vimeoIDPattern.MatchString(id)
	default:
		return false
	}
}

func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(s)) {
	case YouTube:
		return YouTube, nil
	case Vimeo:
		return Vimeo, nil
	default:
		return None, fmt.Errorf("unknown provider %q", s)
	}
}
