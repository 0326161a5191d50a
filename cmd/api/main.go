package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/roofing-leads/cmd/mainconfig"
	"github.com/wolfman30/roofing-leads/internal/api/router"
	"github.com/wolfman30/roofing-leads/internal/app/bootstrap"
	appconfig "github.com/wolfman30/roofing-leads/internal/config"
	"github.com/wolfman30/roofing-leads/internal/leads"
	"github.com/wolfman30/roofing-leads/internal/observability/metrics"
	"github.com/wolfman30/roofing-leads/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting roofing lead intake API",
		"env", cfg.Env,
		"port", cfg.Port,
		"state_backend", cfg.StateBackend,
	)

	ctx := context.Background()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("invalid DATABASE_URL", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	metricsHandler, leadMetrics := setupMetrics()
	awsCfg := loadAWS(ctx, cfg, logger)

	pipeline, repo := bootstrap.BuildLeadPipeline(cfg, bootstrap.LeadDeps{
		Pool:    pool,
		Redis:   redisClient,
		Hooks:   bootstrap.BuildAcceptHooks(cfg, awsCfg, logger),
		Metrics: leadMetrics,
	}, logger)
	if repo == nil && !pipeline.BackupConfigured() {
		logger.Warn("no lead persistence configured; submissions will fail with 500")
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(&router.Config{
			Logger:             logger,
			LeadsHandler:       leads.NewHandler(pipeline, repo, logger),
			AdminAuthSecret:    cfg.AdminJWTSecret,
			MetricsHandler:     metricsHandler,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := pipeline.Wait(shutdownCtx); err != nil {
		logger.Warn("lead hooks still running at shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// setupMetrics builds a dedicated registry so /metrics only carries lead and
// runtime series.
func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewLeadMetrics(reg)
}

// loadAWS returns nil when no AWS-backed integration is configured or the SDK
// config cannot be loaded; those hooks are then skipped.
func loadAWS(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *aws.Config {
	if !cfg.UsesAWS() {
		return nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config; queue and SES alerts disabled", "error", err)
		return nil
	}
	return &awsCfg
}
