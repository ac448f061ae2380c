package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loyalty/internal/loyalty/bus"
	"loyalty/internal/loyalty/engine"
	"loyalty/internal/loyalty/handler"
	"loyalty/internal/loyalty/metrics"
	"loyalty/internal/loyalty/ports"
	memorystore "loyalty/internal/loyalty/store/memory"
	postgresstore "loyalty/internal/loyalty/store/postgres"
	redisstore "loyalty/internal/loyalty/store/redis"
	"loyalty/internal/platform/config"
	"loyalty/internal/platform/httpserver"
	"loyalty/internal/platform/logger"
	"loyalty/internal/platform/middleware"
	platformredis "loyalty/internal/platform/redis"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Rule evaluation and ledger semantics live in internal/loyalty.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	store, seeder, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("store setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	tiers, err := config.LoadTiers(cfg.TiersFile)
	if err != nil {
		log.Error("tier configuration failed", "error", err, "file", cfg.TiersFile)
		os.Exit(1)
	}
	if err := seeder.ReplaceTiers(ctx, tiers); err != nil {
		log.Error("tier seeding failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	eng, err := engine.New(store, defaultRules(),
		engine.WithLogger(log),
		engine.WithMetrics(m),
	)
	if err != nil {
		log.Error("engine setup failed", "error", err)
		os.Exit(1)
	}

	eng.OnTierChanged(func(ev bus.TierChanged) {
		log.Info("tier transition",
			"user_id", ev.UserID,
			"from", tierName(ev.From),
			"to", tierName(ev.To),
		)
	})

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	handler.New(eng, eng.Points(), store, log, m).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting loyalty server", "addr", cfg.Addr, "tiers", len(tiers))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

type seedingStorage interface {
	ports.Storage
	ports.TierSeeder
}

// buildStore picks the storage adapter from configuration: Postgres when
// DATABASE_URL is set, Redis when LOYALTY_REDIS_URL is set, otherwise the
// in-memory store.
func buildStore(ctx context.Context, cfg config.Server) (ports.Storage, ports.TierSeeder, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		store := postgresstore.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return store, store, func() { db.Close() }, nil
	}

	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		store := redisstore.New(client.Client)
		return store, store, func() { client.Close() }, nil
	}

	store := memorystore.New()
	return store, store, func() {}, nil
}

var (
	_ seedingStorage = (*memorystore.Store)(nil)
	_ seedingStorage = (*postgresstore.Store)(nil)
	_ seedingStorage = (*redisstore.Store)(nil)
)
