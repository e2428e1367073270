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

	"agent-settlement-platform/internal/audit"
	"agent-settlement-platform/internal/auth"
	"agent-settlement-platform/internal/config"
	"agent-settlement-platform/internal/hierarchy"
	"agent-settlement-platform/internal/httpapi"
	"agent-settlement-platform/internal/sales"
	"agent-settlement-platform/internal/settlement"
	"agent-settlement-platform/pkg/logger"
	"agent-settlement-platform/pkg/utils"

	"github.com/gin-gonic/gin"
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

	if cfg.IsProduction() {
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

	store := settlement.NewPostgresStore(db)
	rates := settlement.NewRateService(store)

	var cache settlement.ReminderCache = settlement.NopReminderCache()
	if cfg.Settlement.ReminderCacheTTL > 0 {
		cache = settlement.NewRedisReminderCache(rdb, cfg.Settlement.ReminderCacheTTL)
	}

	// The agent hierarchy and the card-sales ledger are owned by the main
	// platform; in-memory stand-ins keep this process runnable until those
	// integrations land.
	directory := hierarchy.NewMemoryDirectory()
	salesSource := sales.NewMemorySource()

	lifecycle := settlement.NewLifecycleService(store, rates, directory, salesSource, cache, cfg.Settlement.BillHistoryLimit)

	handlers := httpapi.Handlers{
		Lifecycle: lifecycle,
		Rates:     rates,
		Directory: directory,
		Audit:     audit.NewService(audit.NewMemoryRepo()),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, db, auth.RequireToken(authManager), handlers)

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
}
