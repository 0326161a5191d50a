package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/roofing-leads/internal/abuse"
	appconfig "github.com/wolfman30/roofing-leads/internal/config"
	"github.com/wolfman30/roofing-leads/internal/distribution"
	"github.com/wolfman30/roofing-leads/internal/notify"
	"github.com/wolfman30/roofing-leads/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		RateLimitMax:            5,
		RateLimitWindow:         time.Minute,
		DuplicateWindow:         24 * time.Hour,
		DuplicateSweepThreshold: 100,
		StateBackend:            "memory",
		WebhookTimeout:          time.Second,
		PersistTimeout:          time.Second,
	}
}

func TestBuildRedisClient_DisabledWithoutAddr(t *testing.T) {
	cfg := testConfig()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Default(), true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, logging.Default(), true))
}

func TestBuildRedisClient_VerifiesConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	client := BuildRedisClient(context.Background(), cfg, logging.Default(), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestBuildRedisClient_UnreachableReturnsNil(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	mr.Close()

	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Default(), true))
}

func TestBuildStateStores(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	client := BuildRedisClient(context.Background(), cfg, logging.Default(), false)
	t.Cleanup(func() { _ = client.Close() })

	t.Run("memory by default", func(t *testing.T) {
		windows, seen := BuildStateStores(cfg, client, logging.Default())
		assert.IsType(t, &abuse.MemoryStore[abuse.Window]{}, windows)
		assert.IsType(t, &abuse.MemoryStore[time.Time]{}, seen)
	})

	t.Run("redis when requested", func(t *testing.T) {
		redisCfg := *cfg
		redisCfg.StateBackend = "redis"
		windows, seen := BuildStateStores(&redisCfg, client, logging.Default())
		assert.NotNil(t, windows)
		assert.NotNil(t, seen)
		_, isMemory := windows.(*abuse.MemoryStore[abuse.Window])
		assert.False(t, isMemory)

		limiter := abuse.NewRateLimiter(windows, abuse.RateLimitConfig{Max: 1, Window: time.Minute}, logging.Default())
		assert.True(t, limiter.Check(context.Background(), "203.0.113.9").Allowed)
		assert.False(t, limiter.Check(context.Background(), "203.0.113.9").Allowed)
	})

	t.Run("redis keys outlive a zero window setting", func(t *testing.T) {
		redisCfg := *cfg
		redisCfg.StateBackend = "redis"
		redisCfg.RateLimitWindow = 0
		redisCfg.DuplicateWindow = 0
		pipeline, _ := BuildLeadPipeline(&redisCfg, LeadDeps{Redis: client}, logging.Default())
		require.NotNil(t, pipeline)

		windows, seen := BuildStateStores(&redisCfg, client, logging.Default())
		limiter := abuse.NewRateLimiter(windows, abuse.RateLimitConfig{Max: 1, Window: redisCfg.RateLimitWindow}, logging.Default())
		require.True(t, limiter.Check(context.Background(), "198.51.100.7").Allowed)
		assert.Equal(t, abuse.DefaultRateLimitWindow, mr.TTL("leads:ratelimit:198.51.100.7"))
		assert.False(t, limiter.Check(context.Background(), "198.51.100.7").Allowed)

		detector := abuse.NewDuplicateDetector(seen, abuse.DuplicateConfig{}, logging.Default())
		require.False(t, detector.IsDuplicate(context.Background(), "5125550142"))
		assert.Equal(t, abuse.DefaultDuplicateWindow, mr.TTL("leads:seen:5125550142"))
	})

	t.Run("redis requested without client falls back", func(t *testing.T) {
		redisCfg := *cfg
		redisCfg.StateBackend = "redis"
		windows, _ := BuildStateStores(&redisCfg, nil, logging.Default())
		assert.IsType(t, &abuse.MemoryStore[abuse.Window]{}, windows)
	})
}

func TestBuildLeadPipeline_WithoutDatabase(t *testing.T) {
	cfg := testConfig()
	pipeline, repo := BuildLeadPipeline(cfg, LeadDeps{}, logging.Default())
	require.NotNil(t, pipeline)
	assert.Nil(t, repo)
	assert.False(t, pipeline.BackupConfigured())

	cfg.BackupWebhookURL = "https://hooks.example.com/leads"
	pipeline, _ = BuildLeadPipeline(cfg, LeadDeps{}, logging.Default())
	assert.True(t, pipeline.BackupConfigured())
}

func TestDurationOr(t *testing.T) {
	assert.Equal(t, time.Minute, durationOr(0, time.Minute))
	assert.Equal(t, time.Minute, durationOr(-time.Second, time.Minute))
	assert.Equal(t, 5*time.Second, durationOr(5*time.Second, time.Minute))
}

func TestBuildPostgresPool_DisabledWithoutURL(t *testing.T) {
	pool, err := BuildPostgresPool(context.Background(), testConfig(), logging.Default())
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestBuildAcceptHooks(t *testing.T) {
	t.Run("nothing configured", func(t *testing.T) {
		assert.Empty(t, BuildAcceptHooks(testConfig(), nil, logging.Default()))
	})

	t.Run("alert email without provider uses stub", func(t *testing.T) {
		cfg := testConfig()
		cfg.LeadAlertEmail = "sales@example.com"
		hooks := BuildAcceptHooks(cfg, nil, logging.Default())
		require.Len(t, hooks, 1)
		assert.IsType(t, &notify.LeadAlerter{}, hooks[0])
	})

	t.Run("queue ignored without aws config", func(t *testing.T) {
		cfg := testConfig()
		cfg.LeadQueueURL = "https://sqs.us-east-1.amazonaws.com/123/leads"
		assert.Empty(t, BuildAcceptHooks(cfg, nil, logging.Default()))
	})

	t.Run("queue and alert with aws config", func(t *testing.T) {
		cfg := testConfig()
		cfg.LeadQueueURL = "https://sqs.us-east-1.amazonaws.com/123/leads"
		cfg.LeadAlertEmail = "sales@example.com"
		cfg.SESFromEmail = "leads@example.com"
		awsCfg := aws.Config{Region: "us-east-1"}

		hooks := BuildAcceptHooks(cfg, &awsCfg, logging.Default())
		require.Len(t, hooks, 2)
		assert.IsType(t, &notify.LeadAlerter{}, hooks[0])
		assert.IsType(t, &distribution.SQSPublisher{}, hooks[1])
	})
}

func TestBuildEmailSender_PrefersSendGrid(t *testing.T) {
	cfg := testConfig()
	assert.Nil(t, BuildEmailSender(cfg, nil, logging.Default()))

	cfg.SendGridAPIKey = "SG.test"
	cfg.SendGridFromEmail = "leads@example.com"
	assert.IsType(t, &notify.SendGridSender{}, BuildEmailSender(cfg, nil, logging.Default()))
}
