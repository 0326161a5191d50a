package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	CORSAllowedOrigins []string
	AdminJWTSecret     string

	// Lead persistence
	BackupWebhookURL string
	WebhookTimeout   time.Duration
	PersistTimeout   time.Duration

	// Abuse controls
	RateLimitMax            int
	RateLimitWindow         time.Duration
	RateLimitSweepThreshold int
	DuplicateWindow         time.Duration
	DuplicateSweepThreshold int
	StateBackend            string
	RedisAddr               string
	RedisPassword           string
	RedisTLS                bool

	// AWS (SQS lead distribution, SES alerts)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	LeadQueueURL        string

	// Lead alert email
	LeadAlertEmail    string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		BackupWebhookURL: strings.TrimSpace(getEnv("BACKUP_WEBHOOK_URL", "")),
		WebhookTimeout:   getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		PersistTimeout:   getEnvAsDuration("PERSIST_TIMEOUT", 5*time.Second),

		RateLimitMax:            getEnvAsInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow:         getEnvAsDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		RateLimitSweepThreshold: getEnvAsInt("RATE_LIMIT_SWEEP_THRESHOLD", 10000),
		DuplicateWindow:         getEnvAsDuration("DUPLICATE_WINDOW", 24*time.Hour),
		DuplicateSweepThreshold: getEnvAsInt("DUPLICATE_SWEEP_THRESHOLD", 10000),
		StateBackend:            strings.ToLower(strings.TrimSpace(getEnv("STATE_BACKEND", "memory"))),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisTLS:                getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		LeadQueueURL:        getEnv("LEAD_QUEUE_URL", ""),

		LeadAlertEmail:    getEnv("LEAD_ALERT_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Roofing Benefits Desk"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
	}
}

// UsesAWS reports whether any AWS-backed integration is configured.
func (c *Config) UsesAWS() bool {
	return c.LeadQueueURL != "" || (c.SESFromEmail != "" && c.LeadAlertEmail != "")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
