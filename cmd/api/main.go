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

	"messaging-platform/internal/auth"
	"messaging-platform/internal/calls"
	"messaging-platform/internal/config"
	"messaging-platform/internal/content"
	"messaging-platform/internal/gateway"
	"messaging-platform/internal/messaging"
	"messaging-platform/internal/presence"
	"messaging-platform/internal/reporting"
	"messaging-platform/internal/sweeper"
	"messaging-platform/pkg/logger"
	"messaging-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
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

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Domain services on Postgres-backed repositories.
	presenceSvc := presence.NewService(presence.NewSQLRepo(db))
	callSvc := calls.NewService(calls.NewSQLRepo(db))
	messageSvc := messaging.NewService(messaging.NewSQLRepo(db, uuid.NewString))
	contentRepo := content.NewSQLRepo(db)
	reportSvc := reporting.NewService(reporting.NewSQLRepo(db))

	// Realtime plumbing.
	registry := gateway.NewRegistry(cfg.Gateway.OutboundBuffer, log)
	router := gateway.NewRouter(registry, messageSvc, callSvc, presenceSvc, log)
	sessions := gateway.NewSessionHandler(authManager, registry, router, presenceSvc, messageSvc, rdb, cfg.Gateway, log)

	// Background maintenance.
	sweeps := sweeper.New(log,
		sweeper.Job{
			Name:     "call_timeout",
			Interval: cfg.Gateway.CallSweepInterval,
			Run: func(ctx context.Context) (int64, error) {
				return callSvc.SweepTimeouts(ctx, cfg.Gateway.CallPendingTimeout)
			},
		},
		sweeper.Job{
			Name:     "presence_staleness",
			Interval: cfg.Gateway.PresenceSweepInterval,
			Run: func(ctx context.Context) (int64, error) {
				// Refresh identities with a live connection first, so the
				// sweep only flips users whose sessions died without a
				// disconnect (crash, partition).
				if _, err := presenceSvc.HeartbeatRefresh(ctx, registry.Identities()); err != nil {
					return 0, err
				}
				return presenceSvc.SweepStale(ctx, cfg.Gateway.PresenceStaleThreshold)
			},
		},
		sweeper.Job{
			Name:     "content_expiry",
			Interval: cfg.Gateway.ContentSweepInterval,
			Run: func(ctx context.Context) (int64, error) {
				return contentRepo.DeleteExpired(ctx, time.Now().UTC())
			},
		},
	)
	sweeps.Start(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		Auth:     authManager,
		Calls:    callSvc,
		Presence: presenceSvc,
		Messages: messageSvc,
		Reports:  reportSvc,
		Router:   router,
		Sessions: sessions,
		Registry: registry,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Websocket sessions outlive any sane write timeout; the per-frame
		// deadlines inside the gateway do the real enforcement.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("gateway listening", "addr", srv.Addr, "env", cfg.App.Env)
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
	sweeps.Wait()

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
