package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/roofing-leads/internal/abuse"
	appconfig "github.com/wolfman30/roofing-leads/internal/config"
	"github.com/wolfman30/roofing-leads/internal/leads"
	"github.com/wolfman30/roofing-leads/internal/observability/metrics"
	"github.com/wolfman30/roofing-leads/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool opens the primary lead store. It returns nil when
// DATABASE_URL is unset. An unreachable database still yields a pool so the
// health check reports it and submissions fall back to the webhook.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Warn("lead database not reachable at startup", "error", err)
	}
	return pool, nil
}

// BuildStateStores picks the rate-limit and duplicate stores. Redis is used
// only when STATE_BACKEND=redis and a client is available.
func BuildStateStores(cfg *appconfig.Config, client *redis.Client, logger *logging.Logger) (abuse.WindowStore, abuse.SeenStore) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg != nil && cfg.StateBackend == "redis" {
		if client != nil {
			logger.Info("abuse state stored in redis")
			return abuse.NewRedisWindowStore(client, "", durationOr(cfg.RateLimitWindow, abuse.DefaultRateLimitWindow)),
				abuse.NewRedisSeenStore(client, "", durationOr(cfg.DuplicateWindow, abuse.DefaultDuplicateWindow))
		}
		logger.Warn("STATE_BACKEND=redis but redis is unavailable; using per-instance memory")
	}
	return abuse.NewMemoryWindowStore(), abuse.NewMemorySeenStore()
}

// LeadDeps are the runtime dependencies of the lead pipeline.
type LeadDeps struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Hooks   []leads.AcceptHook
	Metrics *metrics.LeadMetrics
}

// BuildLeadPipeline wires the intake pipeline. The returned repository is nil
// when no database is configured.
func BuildLeadPipeline(cfg *appconfig.Config, deps LeadDeps, logger *logging.Logger) (*leads.Pipeline, leads.Repository) {
	if logger == nil {
		logger = logging.Default()
	}

	var repo leads.Repository
	if deps.Pool != nil {
		repo = leads.NewPostgresRepository(deps.Pool)
	} else {
		logger.Warn("DATABASE_URL not set; leads are only persisted through the backup webhook")
	}

	windows, seen := BuildStateStores(cfg, deps.Redis, logger)
	pipeline := leads.NewPipeline(leads.Config{
		RateLimiter: abuse.NewRateLimiter(windows, abuse.RateLimitConfig{
			Max:            cfg.RateLimitMax,
			Window:         durationOr(cfg.RateLimitWindow, abuse.DefaultRateLimitWindow),
			SweepThreshold: cfg.RateLimitSweepThreshold,
		}, logger),
		Duplicates: abuse.NewDuplicateDetector(seen, abuse.DuplicateConfig{
			Window:         durationOr(cfg.DuplicateWindow, abuse.DefaultDuplicateWindow),
			SweepThreshold: cfg.DuplicateSweepThreshold,
		}, logger),
		BotFilter:      abuse.NewBotFilter(),
		Repository:     repo,
		Webhook:        leads.NewBackupWebhook(leads.WebhookConfig{URL: cfg.BackupWebhookURL, Timeout: cfg.WebhookTimeout}),
		PersistTimeout: cfg.PersistTimeout,
		Metrics:        deps.Metrics,
		Hooks:          deps.Hooks,
		Logger:         logger,
	})
	return pipeline, repo
}

// durationOr applies the same non-positive fallback the abuse package uses, so
// Redis key TTLs always match the effective windows.
func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
