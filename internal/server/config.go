package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/sendrec/videoconsent/internal/auth"
	"github.com/sendrec/videoconsent/internal/consentlog"
	"github.com/sendrec/videoconsent/internal/httputil"
	"github.com/sendrec/videoconsent/internal/options"
	"github.com/sendrec/videoconsent/internal/validate"
)

const (
	maxConfigBodyBytes   = 64 << 10
	defaultSummaryWindow = 30 * 24 * time.Hour
)

var boolOptions = []string{
	options.Autoplay, options.ShowIcon, options.DarkMode,
	options.Blur, options.Backdrop, options.AutoplayOnConfirm,
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.options.Snapshot())
}

// handlePutConfig replaces the global option object. Every live widget on
// every connected page re-renders.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := httputil.DecodeJSON(r, maxConfigBodyBytes, &values); err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	unknown := lo.Filter(lo.Keys(values), func(name string, _ int) bool {
		return !options.IsKnown(name)
	})
	if len(unknown) > 0 {
		sort.Strings(unknown)
		httputil.WriteError(w, http.StatusBadRequest, "unknown options: "+strings.Join(unknown, ", "))
		return
	}
	if msg := validate.GlobalOptions(values); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	for _, name := range boolOptions {
		if v, ok := values[name]; ok {
			if _, err := options.ParseBool(v); err != nil {
				httputil.WriteError(w, http.StatusBadRequest, name+": "+err.Error())
				return
			}
		}
	}

	s.options.Set(values)
	slog.Info("global widget options replaced", "subject", auth.SubjectFromContext(r.Context()), "options", len(values))
	httputil.WriteJSON(w, http.StatusOK, s.options.Snapshot())
}

type summaryResponse struct {
	Since     time.Time                  `json:"since"`
	Providers []consentlog.ProviderCount `json:"providers"`
}

// parseSince accepts an RFC 3339 timestamp or a duration counted back from now.
func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.Add(-defaultSummaryWindow), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return time.Time{}, errors.New("since must be an RFC 3339 time or a positive duration")
	}
	return now.Add(-d), nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r.URL.Query().Get("since"), time.Now().UTC())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := s.summarizer.Summary(r.Context(), since)
	if err != nil {
		slog.Error("consent log summary failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not load consent summary")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summaryResponse{Since: since, Providers: counts})
}
