// Package config reads process settings from the environment (and a local
// .env in development). Each consumer depends on a narrow getter interface
// instead of the whole Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// DriverAuthConfig provides the shared secret used to verify conversation driver tokens.
type DriverAuthConfig interface {
	GetDriverJWTSecret() string
	GetDriverJWTIssuer() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitPerSecond() float64
	GetRateLimitBurst() int
}

// PolicyConfig points at an optional policy table override file.
type PolicyConfig interface {
	GetPolicyFile() string
}

// PhoneConfig provides the region used to parse numbers without a country prefix.
type PhoneConfig interface {
	GetDefaultPhoneRegion() string
}

// CallConfig provides settings for live call tracking.
type CallConfig interface {
	GetCallIdleTimeout() time.Duration
	GetCallSweepInterval() time.Duration
	GetDefaultTimezone() string
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// FollowUpConfig provides settings for post-call follow-ups.
type FollowUpConfig interface {
	GetSalesDeskRecipients() []string
	GetCallbackReminderLead() time.Duration
	GetFollowUpDelay() time.Duration
	GetFollowUpMessage() string
}

// WhatsAppConfig provides settings for the GOWA WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// SMTPConfig provides settings for outbound email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFromEmail() string
	GetSMTPFromName() string
	IsSMTPEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketCallSummaries() string
	IsMinIOEnabled() bool
}

// QdrantConfig provides settings for Qdrant vector database.
type QdrantConfig interface {
	GetQdrantURL() string
	GetQdrantAPIKey() string
	GetQdrantCollection() string
	IsQdrantEnabled() bool
}

// EmbeddingConfig provides settings for the embedding API service.
type EmbeddingConfig interface {
	GetEmbeddingAPIURL() string
	GetEmbeddingAPIKey() string
	IsEmbeddingEnabled() bool
}

// KnowledgeConfig bounds knowledge search latency.
type KnowledgeConfig interface {
	GetKnowledgeTimeout() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	DriverJWTSecret          string
	DriverJWTIssuer          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	RateLimitPerSecond       float64
	RateLimitBurst           int
	PolicyFile               string
	DefaultPhoneRegion       string
	DefaultTimezone          string
	CallIdleTimeout          time.Duration
	CallSweepInterval        time.Duration
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	SalesDeskRecipients      []string
	CallbackReminderLead     time.Duration
	FollowUpDelay            time.Duration
	FollowUpMessage          string
	WhatsAppURL              string
	WhatsAppKey              string
	WhatsAppDeviceID         string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	SMTPFromEmail            string
	SMTPFromName             string
	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MinioBucketCallSummaries string
	QdrantURL                string
	QdrantAPIKey             string
	QdrantCollection         string
	EmbeddingAPIURL          string
	EmbeddingAPIKey          string
	KnowledgeTimeout         time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// DriverAuthConfig implementation
func (c *Config) GetDriverJWTSecret() string { return c.DriverJWTSecret }
func (c *Config) GetDriverJWTIssuer() string { return c.DriverJWTIssuer }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string            { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool          { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string       { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool        { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerSecond() float64 { return c.RateLimitPerSecond }
func (c *Config) GetRateLimitBurst() int         { return c.RateLimitBurst }

// PolicyConfig implementation
func (c *Config) GetPolicyFile() string { return c.PolicyFile }

// PhoneConfig implementation
func (c *Config) GetDefaultPhoneRegion() string { return c.DefaultPhoneRegion }

// CallConfig implementation
func (c *Config) GetCallIdleTimeout() time.Duration   { return c.CallIdleTimeout }
func (c *Config) GetCallSweepInterval() time.Duration { return c.CallSweepInterval }
func (c *Config) GetDefaultTimezone() string          { return c.DefaultTimezone }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// FollowUpConfig implementation
func (c *Config) GetSalesDeskRecipients() []string       { return c.SalesDeskRecipients }
func (c *Config) GetCallbackReminderLead() time.Duration { return c.CallbackReminderLead }
func (c *Config) GetFollowUpDelay() time.Duration        { return c.FollowUpDelay }
func (c *Config) GetFollowUpMessage() string             { return c.FollowUpMessage }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string      { return c.SMTPHost }
func (c *Config) GetSMTPPort() int         { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string  { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string  { return c.SMTPPassword }
func (c *Config) GetSMTPFromEmail() string { return c.SMTPFromEmail }
func (c *Config) GetSMTPFromName() string  { return c.SMTPFromName }
func (c *Config) IsSMTPEnabled() bool      { return c.SMTPHost != "" && c.SMTPFromEmail != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketCallSummaries() string {
	return c.MinioBucketCallSummaries
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// QdrantConfig implementation
func (c *Config) GetQdrantURL() string        { return c.QdrantURL }
func (c *Config) GetQdrantAPIKey() string     { return c.QdrantAPIKey }
func (c *Config) GetQdrantCollection() string { return c.QdrantCollection }
func (c *Config) IsQdrantEnabled() bool {
	return c.QdrantURL != "" && c.QdrantCollection != ""
}

// EmbeddingConfig implementation
func (c *Config) GetEmbeddingAPIURL() string { return c.EmbeddingAPIURL }
func (c *Config) GetEmbeddingAPIKey() string { return c.EmbeddingAPIKey }
func (c *Config) IsEmbeddingEnabled() bool   { return c.EmbeddingAPIURL != "" }

// KnowledgeConfig implementation
func (c *Config) GetKnowledgeTimeout() time.Duration { return c.KnowledgeTimeout }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		DriverJWTSecret:          getEnv("DRIVER_JWT_SECRET", ""),
		DriverJWTIssuer:          getEnv("DRIVER_JWT_ISSUER", "voice-driver"),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitPerSecond:       mustFloat64(getEnv("RATE_LIMIT_RPS", "50")),
		RateLimitBurst:           int(mustInt64(getEnv("RATE_LIMIT_BURST", "100"))),
		PolicyFile:               getEnv("POLICY_FILE", ""),
		DefaultPhoneRegion:       strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "AR")),
		DefaultTimezone:          getEnv("DEFAULT_TIMEZONE", "America/Argentina/Buenos_Aires"),
		CallIdleTimeout:          mustDuration(getEnv("CALL_IDLE_TIMEOUT", "2h")),
		CallSweepInterval:        mustDuration(getEnv("CALL_SWEEP_INTERVAL", "5m")),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		SalesDeskRecipients:      splitCSV(getEnv("SALES_DESK_RECIPIENTS", "")),
		CallbackReminderLead:     mustDuration(getEnv("CALLBACK_REMINDER_LEAD", "15m")),
		FollowUpDelay:            mustDuration(getEnv("FOLLOWUP_DELAY", "10m")),
		FollowUpMessage:          getEnv("FOLLOWUP_MESSAGE", "Thanks for your time on the call today. Reply here whenever you want to continue and an advisor will pick it up."),
		WhatsAppURL:              getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:              getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:         getEnv("WHATSAPP_DEVICE_ID", ""),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		SMTPFromEmail:            getEnv("SMTP_FROM_EMAIL", ""),
		SMTPFromName:             getEnv("SMTP_FROM_NAME", "Sales Desk"),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketCallSummaries: getEnv("MINIO_BUCKET_CALL_SUMMARIES", "call-summaries"),
		QdrantURL:                getEnv("QDRANT_URL", ""),
		QdrantAPIKey:             getEnv("QDRANT_API_KEY", ""),
		QdrantCollection:         getEnv("QDRANT_COLLECTION", ""),
		EmbeddingAPIURL:          getEnv("EMBEDDING_API_URL", ""),
		EmbeddingAPIKey:          getEnv("EMBEDDING_API_KEY", ""),
		KnowledgeTimeout:         mustDuration(getEnv("KNOWLEDGE_TIMEOUT", "3s")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DriverJWTSecret == "" {
		return fmt.Errorf("DRIVER_JWT_SECRET is required")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	if c.KnowledgeTimeout <= 0 {
		return fmt.Errorf("KNOWLEDGE_TIMEOUT must be a positive duration")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat64(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
