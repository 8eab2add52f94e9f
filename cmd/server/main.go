package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/lockup-engine/internal/api"
	"github.com/atmx/lockup-engine/internal/config"
	"github.com/atmx/lockup-engine/internal/events"
	"github.com/atmx/lockup-engine/internal/lockup"
	"github.com/atmx/lockup-engine/internal/metrics"
	"github.com/atmx/lockup-engine/internal/model"
	"github.com/atmx/lockup-engine/internal/store"
	"github.com/atmx/lockup-engine/internal/token"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	envPath := flag.String("env", "", "directory containing .env files")
	flag.Parse()

	cfg, err := config.Load(*configFile, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	stakingCfg, tokenInfo, err := cfg.Staking.ToModel()
	if err != nil {
		slog.Error("invalid staking config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var pubs events.Multi
	var cleanup []func()

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("database.url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("invalid redis.url", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.Redis.CacheTTL, cfg.Redis.KeyPrefix)
		pubs = append(pubs, events.NewRedisPublisher(rdb, cfg.Redis.EventsChannel))
		slog.Info("Redis cache and event publishing enabled", "channel", cfg.Redis.EventsChannel)
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Instantiate ---
	err = lockup.Instantiate(ctx, st, stakingCfg, tokenInfo)
	switch {
	case errors.Is(err, model.ErrAlreadyInitialized):
		slog.Info("ledger already instantiated, using stored configuration")
	case err != nil:
		slog.Error("instantiate failed", "err", err)
		os.Exit(1)
	default:
		slog.Info("ledger instantiated",
			"issuer", stakingCfg.IssuerAddress,
			"denom", stakingCfg.StakeDenom,
			"long_period", stakingCfg.Period.Long.String(),
			"short_period", stakingCfg.Period.Short.String(),
		)
	}

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run(ctx)
	pubs = append(pubs, wsHub)
	if cfg.Debug {
		pubs = append(pubs, events.Log{Logger: logger})
	}

	// --- Engine ---
	engine := lockup.NewEngine(st, token.NewBank(), pubs, nil)
	if s, err := engine.Supply(ctx); err == nil {
		metrics.SetSupply(s.Locked, s.Issued, s.Fees)
	}
	handler := api.NewHandler(engine)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"lockup-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived; kept outside the request timeout.
		r.Get("/ws", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
			handler.Routes(r)
		})
	})

	// --- Server ---
	port := strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("lockup-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down lockup-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("lockup-engine stopped")
}
