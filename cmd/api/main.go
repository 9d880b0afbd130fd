package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webhook-gateway/internal/auth"
	"webhook-gateway/internal/billing"
	"webhook-gateway/internal/calls"
	"webhook-gateway/internal/config"
	"webhook-gateway/internal/event"
	"webhook-gateway/internal/gateway"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/notify"
	"webhook-gateway/internal/signature"
	"webhook-gateway/migrations"
	"webhook-gateway/pkg/logger"
	"webhook-gateway/pkg/storage"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := storage.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), storage.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := storage.RunMigrations(db, migrations.FS, "."); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	rdb, err := storage.OpenRedis(rootCtx, storage.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	gwMetrics := metrics.NewGateway(reg)

	eventStore := event.NewPostgresStore(db)
	callRepo := calls.NewPostgresRepo(db)

	callSvc := calls.NewService(callRepo)
	billingSvc := billing.NewService(billing.NewPostgresRepo(db), billing.LogNotifications{})

	dispatch := gateway.NewRouter()
	callSvc.Register(dispatch)
	billingSvc.Register(dispatch)

	verifiers := map[string]signature.Verifier{
		gateway.ProviderStripe: signature.NewStripeVerifier(cfg.Providers.StripeWebhookSecret, cfg.Providers.StripeTolerance, log),
		gateway.ProviderTelnyx: signature.NewTelnyxVerifier(cfg.Providers.TelnyxWebhookSecret, log),
	}

	gw := gateway.New(
		eventStore,
		dispatch,
		verifiers,
		notify.NewRedisNotifier(rdb, notify.DefaultChannel),
		gwMetrics,
		rdb,
		gateway.Config{
			HandlerTimeout:   cfg.Gateway.HandlerTimeout,
			RedeliveryWindow: cfg.Gateway.RedeliveryWindow,
			ClaimTTL:         cfg.Gateway.ClaimTTL,
		},
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		authMW:     auth.RequireAccessToken(authManager),
		gateway:    gateway.Handlers{Gateway: gw, Store: eventStore},
		calls:      calls.Handlers{Repo: callRepo},
		db:         db,
		rdb:        rdb,
		promGather: reg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
