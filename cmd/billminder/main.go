package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billminder/billminder-go/internal/config"
	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/handler"
	"github.com/billminder/billminder-go/internal/infra/cache"
	"github.com/billminder/billminder-go/internal/infra/observability"
	"github.com/billminder/billminder-go/internal/infra/resilience"
	"github.com/billminder/billminder-go/internal/infra/sqlite"
	"github.com/billminder/billminder-go/internal/infra/supabase"
	"github.com/billminder/billminder-go/internal/port"
	"github.com/billminder/billminder-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int64("mirror_concurrency", cfg.MirrorConcurrency),
		zap.Int("free_bill_limit", cfg.FreeBillLimit),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "billminder-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Local store (authoritative) ---
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open local store", zap.Error(err))
	}
	defer store.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Remote mirror (best-effort) ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var remote port.RemoteStore
	var supabaseClient *supabase.Client
	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as remote mirror",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		supabaseClient = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			logger,
		)
		remote = supabaseClient
	} else {
		logger.Info("remote mirror disabled, running local-only")
	}

	mirror := service.NewMirror(remote, cfg.MirrorConcurrency, cfg.HTTPTimeout, metrics, logger)

	// --- Services ---
	billSvc := service.NewBillService(store, mirror, metrics, logger, cfg.FreeBillLimit)
	profileSvc := service.NewProfileService(store, remote, mirror, metrics, logger)
	reminderSvc := service.NewReminderService(store, metrics, logger)
	reportSvc := service.NewReportService(store, logger)

	var adminSvc *service.AdminService
	var adminAuthSvc *service.AdminAuthService
	if supabaseClient != nil {
		statsCache := cache.New[domain.AdminStats](cfg.CacheTTL)
		adminSvc = service.NewAdminService(supabaseClient, store, statsCache, metrics, logger)
		adminAuthSvc = service.NewAdminAuthService(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
		logger.Info("admin overlay enabled")
	} else {
		logger.Warn("admin overlay: Supabase not configured, admin routes unavailable")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Bills:     billSvc,
		Profiles:  profileSvc,
		Reminders: reminderSvc,
		Reports:   reportSvc,
		Admin:     adminSvc,
		AdminAuth: adminAuthSvc,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	// Drain in-flight mirror pushes before exit.
	mirror.Wait()

	logger.Info("server stopped")
}
