package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/sendrec/videoconsent/internal/broadcast"
	"github.com/sendrec/videoconsent/internal/consent"
	"github.com/sendrec/videoconsent/internal/consentlog"
	"github.com/sendrec/videoconsent/internal/httputil"
	"github.com/sendrec/videoconsent/internal/options"
	"github.com/sendrec/videoconsent/internal/provider"
	"github.com/sendrec/videoconsent/internal/validate"
	"github.com/sendrec/videoconsent/internal/widget"
)

// Backend selects the consent store a deployment answers from.
type Backend string

const (
	BackendCookie   Backend = "cookie"
	BackendStatic   Backend = "static"
	BackendPlatform Backend = "platform"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendCookie, nil
	case BackendCookie, BackendStatic, BackendPlatform:
		return b, nil
	default:
		return "", fmt.Errorf("unknown consent backend %q", s)
	}
}

const (
	maxConsentBodyBytes = 16 << 10
	stateHeader         = "X-Widget-State"
	pageNonceHeader     = "X-Page-Nonce"
)

var pageNoncePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,64}$`)

// environment builds the widget context for one request. Each request gets
// its own bus; the process-wide bus only reaches browsers through
// /api/events.
func (s *Server) environment(w http.ResponseWriter, r *http.Request) *widget.Context {
	var store consent.Store
	switch s.backend {
	case BackendStatic:
		store = consent.StaticStore{Granted: s.staticGranted}
	case BackendPlatform:
		store = s.platform
	default:
		store = consent.NewCookieStore(consent.NewRequestJar(w, r), s.secureCookies)
	}

	return &widget.Context{
		Consent: store,
		Options: s.options,
		Bus:     broadcast.New(),
		Origin:  s.origin,
		Nonce:   fragmentNonce(r),
	}
}

// fragmentNonce prefers the nonce of the page a fragment will be inserted
// into, so its inline styles pass that page's policy.
func fragmentNonce(r *http.Request) string {
	if n := r.Header.Get(pageNonceHeader); pageNoncePattern.MatchString(n) {
		return n
	}
	return httputil.NonceFromContext(r.Context())
}

// queryWidget reads widget attributes and round-trip controls from the
// query string. Unknown parameters are ignored.
func queryWidget(q url.Values) (map[string]string, []widget.Option) {
	attrs := map[string]string{}
	for name, values := range q {
		if options.IsKnown(name) && len(values) > 0 {
			attrs[name] = values[0]
		}
	}

	var opts []widget.Option
	if id := q.Get("instance"); id != "" {
		opts = append(opts, widget.WithInstanceID(id))
	}
	if q.Get("confirmed") == "1" {
		opts = append(opts, widget.WithJustConfirmed())
	}
	return attrs, opts
}

func knownAttributes(attrs map[string]string) map[string]string {
	return lo.PickBy(attrs, func(name, _ string) bool {
		return options.IsKnown(name)
	})
}

func writeWidget(w http.ResponseWriter, wd *widget.Widget) {
	html, err := wd.HTML()
	if err != nil {
		slog.Error("render widget host failed", "instance", wd.ID(), "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not render widget")
		return
	}
	w.Header().Set(stateHeader, wd.State().String())
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteHTML(w, http.StatusOK, html)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	attrs, opts := queryWidget(r.URL.Query())
	if msg := validate.Attributes(attrs); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	page := widget.NewPage(s.environment(w, r))
	defer page.Close()

	wd, err := page.Add(attrs, opts...)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeWidget(w, wd)
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	attrs, opts := queryWidget(r.URL.Query())
	if msg := validate.Attributes(attrs); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	page := widget.NewPage(s.environment(w, r))
	defer page.Close()

	wd, err := page.Add(attrs, opts...)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	host, err := wd.HTML()
	if err != nil {
		slog.Error("render embed widget failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not render widget")
		return
	}

	title := "Video"
	if p := wd.Output().Provider; p != provider.None {
		title = p.DisplayName() + " video"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := embedPageTemplate.Execute(w, embedPageData{
		Title:  title,
		Nonce:  httputil.NonceFromContext(r.Context()),
		Widget: host,
	}); err != nil {
		slog.Error("render embed page failed", "error", err)
	}
}

type consentRequest struct {
	InstanceID string            `json:"instanceId"`
	Target     string            `json:"target"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	p, err := provider.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "unknown provider")
		return
	}

	var req consentRequest
	if err := httputil.DecodeJSON(r, maxConsentBodyBytes, &req); err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	attrs := knownAttributes(req.Attributes)
	if msg := validate.Attributes(attrs); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	page := widget.NewPage(s.environment(w, r))
	defer page.Close()

	wd, err := page.Add(attrs, widget.WithInstanceID(req.InstanceID))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if wd.Output().Provider != p {
		httputil.WriteError(w, http.StatusBadRequest, "src does not belong to "+p.DisplayName())
		return
	}

	if err := wd.Click(r.Context(), widget.Target{Tag: req.Target}); err != nil {
		status, message := consentErrorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("consent grant failed", "provider", p, "backend", s.backend, "error", err)
		}
		httputil.WriteError(w, status, message)
		return
	}

	if strings.EqualFold(req.Target, "a") {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if s.recorder != nil {
		s.recorder.RecordAsync(consentlog.Grant{
			Provider:   p,
			InstanceID: wd.ID(),
			IP:         httputil.ClientIP(r),
			UserAgent:  r.UserAgent(),
			Backend:    string(s.backend),
		})
	}
	writeWidget(w, wd)
}

func consentErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, consent.ErrReadOnly):
		return http.StatusConflict, "consent cannot be changed here"
	case errors.Is(err, consent.ErrNoService):
		return http.StatusNotFound, "consent platform has no service for this provider"
	case errors.Is(err, consent.ErrNoProvider), errors.Is(err, options.ErrInvalidBool):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusBadGateway, "consent backend unavailable"
	}
}
