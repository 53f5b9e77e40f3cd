package server

import (
	"net/http"
	"strings"

	"github.com/sendrec/videoconsent/internal/httputil"
)

// Players may only be framed from the privacy-enhanced hosts.
var playerFrameSources = []string{"https://www.youtube-nocookie.com", "https://player.vimeo.com"}

type SecurityConfig struct {
	BaseURL               string
	StorageEndpoint       string
	AllowedFrameAncestors string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")
	ancestors := strings.Fields(cfg.AllowedFrameAncestors)

	// Pictures and thumbnail proxies are configured per widget.
	images := []string{"https:"}
	if cfg.StorageEndpoint != "" {
		images = append(images, cfg.StorageEndpoint)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := httputil.GenerateNonce()
			ctx := httputil.ContextWithNonce(r.Context(), nonce)

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			if len(ancestors) == 0 {
				w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			}
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Content-Security-Policy", httputil.Policy{
				Nonce:          nonce,
				FrameSources:   playerFrameSources,
				ImageSources:   images,
				FrameAncestors: ancestors,
			}.String())

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
