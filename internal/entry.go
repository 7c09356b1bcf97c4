// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ashby/guidepost/internal/api"
	"github.com/ashby/guidepost/internal/docstore"
	"github.com/ashby/guidepost/internal/guideservice"
	"github.com/ashby/guidepost/internal/mirror"
	"github.com/ashby/guidepost/internal/session"
	"github.com/ashby/guidepost/internal/sse"
	"github.com/ashby/guidepost/internal/store"
	"github.com/ashby/guidepost/internal/upstream"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.cfg == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.cfg

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Data.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("upstream", cfg.Upstream.BaseURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Initialize document store.
	docs, err := docstore.NewFS(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("init docstore: %w", err)
	}

	// Initialize SQLite catalog.
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(250 * time.Millisecond)
	defer broker.Close()

	// Optional downstream mirror.
	mir := mirror.New(cfg.Mirror.URL, cfg.Mirror.QueueSize, logger)
	defer mir.Close()
	if mir.Enabled() {
		logger.Info("Mirror enabled", slog.String("url", cfg.Mirror.URL))
	}

	// Build services.
	sessions := session.NewManager(docs, logger)
	guides := guideservice.NewService(db, docs, logger, func(event string, payload any) {
		broker.Publish(sse.Event{Type: event, Data: payload})
	})
	up := upstream.New(cfg.Upstream.BaseURL)

	handler := api.NewHandler(sessions, guides, up, broker, mir)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the data directory so drafts edited out of band are picked up.
	g.Go(func() error {
		err := docstore.Watch(gCtx, cfg.Data.Dir, logger, func(kind, key string) {
			if !strings.HasPrefix(key, docstore.DraftKeyPrefix) {
				return
			}
			id := strings.TrimPrefix(key, docstore.DraftKeyPrefix)
			switch kind {
			case "deleted":
				sessions.Evict(id)
			default:
				sessions.Reload(id)
			}
			broker.Publish(sse.Event{
				Type: "draft.updated",
				Data: map[string]string{"draftId": id, "source": "watcher"},
			})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
