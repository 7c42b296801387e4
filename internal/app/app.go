package app

import (
	"context"
	"log/slog"
	"net/http"

	"gradeauth/internal/config"
)

// App bundles the HTTP server with the teardown of everything
// setupHTTP started (sweep loop, limiter, tracker, DB).
type App struct {
	server  *http.Server
	cleanup func() error
}

// New builds the full service: infra, dependency graph, router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	router, cleanup, err := setupHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		server: &http.Server{
			Addr:    ":" + cfg.AppPort,
			Handler: router,
		},
		cleanup: cleanup,
	}, nil
}

// Run serves until the listener fails or Shutdown is called.
func (a *App) Run() error {
	slog.Info("listening", slog.String("addr", a.server.Addr))
	return a.server.ListenAndServe()
}

// Shutdown drains in-flight requests within ctx, then tears down the
// background workers and connections.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil {
		return err
	}
	return a.cleanup()
}
