package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/sendrec/videoconsent/internal/broadcast"
	"github.com/sendrec/videoconsent/internal/cmp"
	"github.com/sendrec/videoconsent/internal/consent"
	"github.com/sendrec/videoconsent/internal/consentlog"
	"github.com/sendrec/videoconsent/internal/database"
	"github.com/sendrec/videoconsent/internal/geoip"
	"github.com/sendrec/videoconsent/internal/httputil"
	"github.com/sendrec/videoconsent/internal/options"
	"github.com/sendrec/videoconsent/internal/server"
	"github.com/sendrec/videoconsent/internal/storage"
	"github.com/sendrec/videoconsent/internal/thumbnail"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the widget HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	port := getEnv("PORT", "8080")
	baseURL := getEnv("BASE_URL", "http://localhost:8080")

	backend, err := server.ParseBackend(os.Getenv("CONSENT_BACKEND"))
	if err != nil {
		return err
	}
	staticGranted, err := parseConsentDefault(os.Getenv("CONSENT_DEFAULT"))
	if err != nil {
		return err
	}

	trustedProxies, err := httputil.ParseTrustedProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bus := broadcast.New()
	globalOptions := options.NewGlobal(bus)
	if path := os.Getenv("WIDGET_CONFIG"); path != "" {
		if err := options.Watch(path, globalOptions); err != nil {
			return err
		}
		log.Printf("widget config loaded from %s", path)
	}

	cfg := server.Config{
		BaseURL:               baseURL,
		Backend:               backend,
		StaticGranted:         staticGranted,
		Bus:                   bus,
		Options:               globalOptions,
		AdminJWTSecret:        os.Getenv("ADMIN_JWT_SECRET"),
		AllowedFrameAncestors: os.Getenv("ALLOWED_FRAME_ANCESTORS"),
		EnableDocs:            getEnv("API_DOCS_ENABLED", "false") == "true",
		TrustedProxies:        trustedProxies,
	}

	if cmpURL := os.Getenv("CMP_BASE_URL"); cmpURL != "" {
		cfg.Platform = consent.NewPlatformStore(cmp.New(cmpURL, os.Getenv("CMP_API_KEY")), bus)
		cfg.CMPWebhookSecret = os.Getenv("CMP_WEBHOOK_SECRET")
		if cfg.CMPWebhookSecret == "" {
			log.Println("CMP_WEBHOOK_SECRET is empty, consent platform events will be rejected")
		}
	}
	if backend == server.BackendPlatform && cfg.Platform == nil {
		return errors.New("CONSENT_BACKEND=platform requires CMP_BASE_URL")
	}

	var recorder *consentlog.Recorder
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		db, err := database.Connect(ctx, databaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(databaseURL); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		log.Println("database migrations applied")

		geo := geoip.Open(os.Getenv("GEOIP_DB"))
		defer func() { _ = geo.Close() }()

		recorder, err = consentlog.New(db.Pool, geo, []byte(os.Getenv("VISITOR_HASH_KEY")))
		if err != nil {
			return err
		}
		cfg.Pinger = db
		cfg.Recorder = recorder
		cfg.Summarizer = recorder
	} else {
		log.Println("DATABASE_URL not set, consent log disabled")
	}

	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		store, err := storage.New(ctx, storage.Config{
			Endpoint:       endpoint,
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         getEnv("S3_BUCKET", "videoconsent"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getEnv("S3_REGION", "eu-central-1"),
		})
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("storage bucket check failed: %w", err)
		}
		log.Println("thumbnail proxy enabled")

		cfg.Thumbnails = thumbnail.NewProxy(store).Handler
		cfg.StorageEndpoint = getEnv("S3_PUBLIC_ENDPOINT", endpoint)
	}

	srv := server.New(cfg)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		// WriteTimeout stays unset: /api/events streams for as long as the page is open.
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("videoconsent listening on :%s (backend %s)", port, backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-shutdownCh:
	}
	log.Println("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		time.Duration(getEnvInt64("SHUTDOWN_TIMEOUT_SECONDS", 10))*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if recorder != nil {
		recorder.Wait()
	}
	log.Println("shutdown complete")
	return nil
}

// parseConsentDefault reads the answer of the static backend. "granted" and
// "denied" are accepted along with anything cast understands as a bool.
func parseConsentDefault(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "denied":
		return false, nil
	case "granted":
		return true, nil
	}
	granted, err := cast.ToBoolE(raw)
	if err != nil {
		return false, fmt.Errorf("CONSENT_DEFAULT: %w", err)
	}
	return granted, nil
}
