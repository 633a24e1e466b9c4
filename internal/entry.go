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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tankobon/internal/api"
	"github.com/starford/tankobon/internal/archiveservice"
	"github.com/starford/tankobon/internal/library"
	"github.com/starford/tankobon/internal/mcpserver"
	"github.com/starford/tankobon/internal/sse"
)

func (app *application) init(opts []Option) (*Config, *slog.Logger, error) {
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		// Initialize structured JSON logger.
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	if app.version == "" {
		app.version = "dev"
	}
	return app.config, app.logger, nil
}

// Run starts the HTTP server, and the library watcher when enabled, with
// the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	cfg, logger, err := app.init(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_root", cfg.Library.Root),
		slog.Bool("catalog_enabled", cfg.Catalog.Enabled),
		slog.Bool("watch_enabled", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	services, err := NewServices(cfg, logger, archiveservice.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer services.Close()

	apiRouter := api.NewRouter(services.Archives, newRemotes(cfg, logger), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if _, err := os.Stat(services.Library.Root()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"library unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		// Start library watcher; settled changes go through the service.
		g.Go(func() error {
			err := library.Watch(gCtx, services.Library.Root(), cfg.Watch.Settle.D(), logger, func(kind, path string) {
				services.Archives.HandleChange(gCtx, kind, path)
			})
			if err != nil {
				return fmt.Errorf("watcher error: %w", err)
			}
			return nil
		})
	}

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
		defer signal.Stop(quit)

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

		// The watcher exits with gCtx; cancel it on a signal too.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown ends the errgroup after a signal so the watcher stops too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs must not go to stdout
// here, so the caller is expected to pass a stderr logger via WithLogger.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	cfg, logger, err := app.init(opts)
	if err != nil {
		return err
	}

	services, err := NewServices(cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	logger.Info("MCP server starting", slog.String("library_root", cfg.Library.Root))
	return mcpserver.New(services.Archives, app.version).ServeStdio()
}
