package thumbnail

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sendrec/videoconsent/internal/httputil"
	"github.com/sendrec/videoconsent/internal/provider"
)

// Handler serves GET /thumbnails/{provider}/{videoID} as a redirect to the
// cached image.
func (p *Proxy) Handler(w http.ResponseWriter, r *http.Request) {
	prov, err := provider.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "unknown provider")
		return
	}

	link, err := p.URL(r.Context(), prov, chi.URLParam(r, "videoID"))
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "thumbnail not found")
		return
	case err != nil:
		slog.Error("thumbnail: proxy failed", "provider", prov, "video_id", chi.URLParam(r, "videoID"), "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "could not load thumbnail")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=1800")
	http.Redirect(w, r, link, http.StatusFound)
}
