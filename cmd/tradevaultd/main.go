// Command tradevaultd runs the trading journal API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/tradevault/platform/internal/app"
	"github.com/tradevault/platform/internal/app/httpapi"
	"github.com/tradevault/platform/internal/app/metrics"
	"github.com/tradevault/platform/internal/app/storage/postgres"
	"github.com/tradevault/platform/internal/config"
	"github.com/tradevault/platform/internal/middleware"
	"github.com/tradevault/platform/internal/platform/migrations"
	"github.com/tradevault/platform/pkg/logger"
)

func main() {
	log := logger.NewDefault("tradevaultd")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("load configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("initialize storage")
		os.Exit(1)
	}
	defer cleanup()

	application, err := app.New(cfg, stores, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	seeds, err := config.LoadFeedSeeds(cfg.FeedSeedPath)
	if err != nil {
		log.WithError(err).Error("load feed seeds")
		os.Exit(1)
	}
	if len(seeds) > 0 {
		if err := application.PriceFeeds.SeedDefaults(ctx, seeds); err != nil {
			log.WithError(err).Error("seed price feeds")
			os.Exit(1)
		}
		log.WithField("feeds", len(seeds)).Info("default price feeds provisioned")
	}

	api := httpapi.New(application, log)
	if cfg.AuditLogPath != "" {
		sink, err := httpapi.NewFileAuditSink(cfg.AuditLogPath)
		if err != nil {
			log.WithError(err).Error("open audit log")
			os.Exit(1)
		}
		api.WithAuditSink(sink)
	}

	handler := buildHandler(cfg, api, log)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application services")
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.WithError(err).Error("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
	log.Info("shutdown complete")
}

// buildStores connects to Postgres when configured and falls back to the
// in-memory store otherwise, which is good enough for local development.
func buildStores(ctx context.Context, cfg config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, func() {}, nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
	if err != nil {
		return app.Stores{}, nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := migrations.Apply(ctx, db.DB); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}
	log.Info("database migrations applied")

	store := postgres.New(db)
	stores := app.Stores{
		Accounts:    store,
		Trades:      store,
		Notes:       store,
		Connections: store,
		Sync:        store,
		Affiliates:  store,
		Billing:     store,
		PriceFeeds:  store,
		Wallets:     store,
	}
	return stores, func() { db.Close() }, nil
}

// buildHandler wraps the API routes with the shared middleware chain.
func buildHandler(cfg config.Config, api *httpapi.Handler, log *logger.Logger) http.Handler {
	auth := middleware.NewAuthMiddleware([]byte(cfg.JWTSecret), log, []string{
		"/auth/register",
		"/auth/login",
		"/billing/webhook",
		"/healthz",
		"/metrics",
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	limiter.StartCleanup(time.Minute, nil)

	cors := middleware.NewCORSMiddleware(splitOrigins(cfg.AllowedOrigins))
	requestLog := middleware.NewRequestLogger(os.Stdout)

	var handler http.Handler = api.Routes()
	handler = auth.Handler(handler)
	handler = limiter.Handler(handler)
	handler = metrics.InstrumentHandler(handler)
	handler = requestLog.Handler(handler)
	handler = cors.Handler(handler)
	return handler
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
