package server

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sendrec/videoconsent/internal/auth"
	"github.com/sendrec/videoconsent/internal/broadcast"
	"github.com/sendrec/videoconsent/internal/cmp"
	"github.com/sendrec/videoconsent/internal/consent"
	"github.com/sendrec/videoconsent/internal/consentlog"
	"github.com/sendrec/videoconsent/internal/docs"
	"github.com/sendrec/videoconsent/internal/httputil"
	"github.com/sendrec/videoconsent/internal/options"
	"github.com/sendrec/videoconsent/internal/ratelimit"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// GrantRecorder receives every successful grant. consentlog.Recorder is one.
type GrantRecorder interface {
	RecordAsync(g consentlog.Grant)
}

type GrantSummarizer interface {
	Summary(ctx context.Context, since time.Time) ([]consentlog.ProviderCount, error)
}

type Config struct {
	Pinger        Pinger
	BaseURL       string
	Backend       Backend
	StaticGranted bool
	// Bus is the process-wide bus; global option changes and platform
	// consent events are broadcast on it and forwarded to browsers.
	Bus      *broadcast.Bus
	Options  *options.Global
	Platform *consent.PlatformStore

	CMPWebhookSecret string
	AdminJWTSecret   string

	Recorder   GrantRecorder
	Summarizer GrantSummarizer
	Thumbnails http.HandlerFunc

	StorageEndpoint       string
	AllowedFrameAncestors string
	EnableDocs            bool
	// TrustedProxies decides whose X-Forwarded-For is believed for rate
	// limiting and the consent log. nil trusts no proxy.
	TrustedProxies *httputil.TrustedProxies
}

type Server struct {
	router        chi.Router
	pinger        Pinger
	backend       Backend
	staticGranted bool
	bus           *broadcast.Bus
	options       *options.Global
	platform      *consent.PlatformStore
	recorder      GrantRecorder
	summarizer    GrantSummarizer
	origin        string
	secureCookies bool
	heartbeat     time.Duration
	stop          context.CancelFunc
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(cfg.TrustedProxies.Middleware)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:               cfg.BaseURL,
		StorageEndpoint:       cfg.StorageEndpoint,
		AllowedFrameAncestors: cfg.AllowedFrameAncestors,
	}))

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendCookie
	}
	if cfg.Backend == BackendPlatform && cfg.Platform == nil {
		log.Fatal("platform consent backend requires a consent platform store")
	}
	if cfg.Bus == nil {
		cfg.Bus = broadcast.New()
	}
	if cfg.Options == nil {
		cfg.Options = options.NewGlobal(cfg.Bus)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:        r,
		pinger:        cfg.Pinger,
		backend:       cfg.Backend,
		staticGranted: cfg.StaticGranted,
		bus:           cfg.Bus,
		options:       cfg.Options,
		platform:      cfg.Platform,
		recorder:      cfg.Recorder,
		summarizer:    cfg.Summarizer,
		origin:        originOf(baseURL),
		secureCookies: strings.HasPrefix(baseURL, "https://"),
		heartbeat:     25 * time.Second,
		stop:          cancel,
	}

	consentLimiter := ratelimit.NewLimiter(1, 10)
	go consentLimiter.Run(ctx)

	s.routes(cfg, consentLimiter)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work started by New.
func (s *Server) Close() {
	s.stop()
}

func (s *Server) routes(cfg Config, consentLimiter *ratelimit.Limiter) {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Handle("/static/*", http.StripPrefix("/static/", newAssetServer()))

	s.router.Get("/embed", s.handleEmbed)
	s.router.Get("/api/widgets/render", s.handleRender)
	s.router.With(consentLimiter.Middleware).Post("/api/consent/{provider}", s.handleConsent)
	s.router.Get("/api/events", s.handleEvents)

	s.router.Get("/api/limits", s.handleLimits)
	s.router.Get("/api/config", s.handleGetConfig)
	admin := auth.RequireRole(cfg.AdminJWTSecret, auth.RoleAdmin)
	s.router.With(admin).Put("/api/config", s.handlePutConfig)
	if s.summarizer != nil {
		s.router.With(admin).Get("/api/consent-log/summary", s.handleSummary)
	}

	if cfg.EnableDocs {
		s.router.Get("/api/docs", docs.HandleDocs)
		s.router.Get("/api/docs/openapi.yaml", docs.HandleSpec)
	}

	if s.platform != nil {
		s.router.Post("/api/cmp/events", cmp.EventsHandler(cfg.CMPWebhookSecret, s.platform))
	}
	if cfg.Thumbnails != nil {
		s.router.Get("/thumbnails/{provider}/{videoID}", cfg.Thumbnails)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// originOf reduces a base URL to scheme and host.
func originOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
