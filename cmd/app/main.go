// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyalty-redemption-core/internal/config"
	pg "loyalty-redemption-core/internal/infra/db/postgres"
	"loyalty-redemption-core/internal/infra/logging"
	"loyalty-redemption-core/internal/infra/metrics"
	"loyalty-redemption-core/internal/infra/realtime"
	red "loyalty-redemption-core/internal/infra/redis"
	"loyalty-redemption-core/internal/infra/sched"
	"loyalty-redemption-core/internal/infra/web"
	"loyalty-redemption-core/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	loc, err := time.LoadLocation(cfg.Program.Timezone)
	if err != nil {
		log.Fatalf("program.timezone: %v", err)
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)
	eventBus := red.NewEventBus(redisClient, logger)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	memberRepo := pg.NewMemberRepo(pool)
	entitlementRepo := pg.NewEntitlementRepoCacheDecorator(pg.NewEntitlementRepo(pool), redisClient, cfg.Redis.TTL)
	tokenRepo := pg.NewTokenRepo(pool)
	recordRepo := pg.NewRecordRepo(pool)

	// ---- Use cases ----
	redemptionUC := usecase.NewRedemptionUseCase(memberRepo, entitlementRepo, tokenRepo, recordRepo, txManager, cfg.Redemption.TokenTTL, loc, logger)
	verifierUC := usecase.NewVerifierUseCase(memberRepo, entitlementRepo, tokenRepo, recordRepo, txManager, eventBus, locker, cfg.Redemption.ExpiredPolicy, logger)
	ledgerUC := usecase.NewLedgerUseCase(memberRepo, txManager, logger)
	catalogUC := usecase.NewCatalogUseCase(entitlementRepo, logger)

	// ---- Realtime channel ----
	hub := realtime.NewHub(logger)
	go func() {
		if err := eventBus.Run(ctx, hub); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("event bus stopped")
		}
	}()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth)
	srv := web.NewServer(redemptionUC, verifierUC, ledgerUC, catalogUC, hub, auth, rateLimiter, cfg.Redemption.RedeemPerMinute, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(cfg.Worker.ExpiryInterval, cfg.Worker.ExpiryBatch, verifierUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
