package httputil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"strings"
)

type contextKey string

const nonceKey contextKey = "csp-nonce"

func GenerateNonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		slog.Error("failed to generate CSP nonce", "error", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func ContextWithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey, nonce)
}

func NonceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(nonceKey).(string); ok {
		return v
	}
	return ""
}

// Policy is a Content-Security-Policy for pages that host video widgets.
type Policy struct {
	Nonce          string
	FrameSources   []string
	ImageSources   []string
	ConnectSources []string
	FrameAncestors []string
}

func (p Policy) String() string {
	nonce := "'nonce-" + p.Nonce + "'"
	directives := []string{
		"default-src 'self'",
		"script-src 'self' " + nonce,
		"style-src 'self' " + nonce,
		"img-src " + sources("'self' data:", p.ImageSources),
		"frame-src " + sources("", p.FrameSources),
		"connect-src " + sources("'self'", p.ConnectSources),
		"frame-ancestors " + sources("'self'", p.FrameAncestors),
		"base-uri 'self'",
		"form-action 'self'",
		"object-src 'none'",
	}
	return strings.Join(directives, "; ")
}

func sources(base string, extra []string) string {
	all := strings.TrimSpace(base + " " + strings.Join(extra, " "))
	if all == "" {
		return "'none'"
	}
	return all
}
