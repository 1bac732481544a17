// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
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

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// WebhookConfig provides settings for the inbound messaging webhook.
type WebhookConfig interface {
	GetWebhookAuthToken() string
	GetDedupWindow() time.Duration
	GetDebounceWindow() time.Duration
}

// ConversationConfig provides settings for the conversation engine.
type ConversationConfig interface {
	GetStateTTL() time.Duration
	GetCorrectionCacheTTL() time.Duration
}

// BookingConfig provides settings for the booking transaction engines.
type BookingConfig interface {
	GetBookingLeadTime() time.Duration
	GetCancellationWindow() time.Duration
	GetBookingReferencePrefix() string
}

// NotificationConfig provides settings for reminder/follow-up scheduling.
type NotificationConfig interface {
	GetReminderOffset() time.Duration
	GetFollowUpOffset() time.Duration
}

// OracleConfig provides settings for the language-model oracle.
type OracleConfig interface {
	GetAIProvider() string
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetMoonshotAPIKey() string
	GetMoonshotModel() string
	GetOracleTimeout() time.Duration
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// WhatsAppConfig provides settings for the outbound WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// EmailConfig provides settings for SMTP staff notifications.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromAddress() string
	GetStaffEmailAddress() string
	IsEmailEnabled() bool
}

// =============================================================================
// Config
// =============================================================================

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	CORSAllowAll bool
	CORSOrigins  []string

	WebhookAuthToken string
	DedupWindow      time.Duration
	DebounceWindow   time.Duration

	StateTTL           time.Duration
	CorrectionCacheTTL time.Duration

	BookingLeadTime        time.Duration
	CancellationWindow     time.Duration
	BookingReferencePrefix string

	ReminderOffset time.Duration
	FollowUpOffset time.Duration

	AIProvider     string
	GeminiAPIKey   string
	GeminiModel    string
	MoonshotAPIKey string
	MoonshotModel  string
	OracleTimeout  time.Duration

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	WhatsAppURL      string
	WhatsAppKey      string
	WhatsAppDeviceID string

	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	EmailFromAddress  string
	StaffEmailAddress string
	EmailEnabled      bool
}

// Load reads configuration from the environment (and .env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		CORSAllowAll: strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:  splitCSV(getEnv("CORS_ORIGINS", "")),

		WebhookAuthToken: getEnv("WEBHOOK_AUTH_TOKEN", ""),
		DedupWindow:      secondsEnv("DEDUP_WINDOW_SECONDS", 120),
		DebounceWindow:   secondsEnv("DEBOUNCE_WINDOW_SECONDS", 2),

		StateTTL:           minutesEnv("STATE_TTL_MINUTES", 30),
		CorrectionCacheTTL: secondsEnv("CORRECTION_CACHE_TTL_SECONDS", 60),

		BookingLeadTime:        minutesEnv("BOOKING_LEAD_TIME_MINUTES", 60),
		CancellationWindow:     minutesEnv("CANCELLATION_WINDOW_MINUTES", 120),
		BookingReferencePrefix: getEnv("BOOKING_REFERENCE_PREFIX", "CB-"),

		ReminderOffset: minutesEnv("REMINDER_OFFSET_MINUTES", 1440),
		FollowUpOffset: minutesEnv("FOLLOWUP_OFFSET_MINUTES", 120),

		AIProvider:     strings.ToLower(getEnv("AI_PROVIDER", "gemini")),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		MoonshotAPIKey: getEnv("MOONSHOT_API_KEY", ""),
		MoonshotModel:  getEnv("MOONSHOT_MODEL", "kimi-k2-turbo-preview"),
		OracleTimeout:  secondsEnv("ORACLE_TIMEOUT_SECONDS", 8),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: intEnv("ASYNQ_CONCURRENCY", 10),

		WhatsAppURL:      getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:      getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID: getEnv("WHATSAPP_DEVICE_ID", ""),

		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          intEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		StaffEmailAddress: getEnv("STAFF_EMAIL_ADDRESS", ""),
	}
	cfg.EmailEnabled = cfg.SMTPHost != "" && cfg.StaffEmailAddress != ""

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

func (c *Config) GetWebhookAuthToken() string      { return c.WebhookAuthToken }
func (c *Config) GetDedupWindow() time.Duration    { return c.DedupWindow }
func (c *Config) GetDebounceWindow() time.Duration { return c.DebounceWindow }

func (c *Config) GetStateTTL() time.Duration           { return c.StateTTL }
func (c *Config) GetCorrectionCacheTTL() time.Duration { return c.CorrectionCacheTTL }

func (c *Config) GetBookingLeadTime() time.Duration    { return c.BookingLeadTime }
func (c *Config) GetCancellationWindow() time.Duration { return c.CancellationWindow }
func (c *Config) GetBookingReferencePrefix() string    { return c.BookingReferencePrefix }

func (c *Config) GetReminderOffset() time.Duration { return c.ReminderOffset }
func (c *Config) GetFollowUpOffset() time.Duration { return c.FollowUpOffset }

func (c *Config) GetAIProvider() string           { return c.AIProvider }
func (c *Config) GetGeminiAPIKey() string         { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string          { return c.GeminiModel }
func (c *Config) GetMoonshotAPIKey() string       { return c.MoonshotAPIKey }
func (c *Config) GetMoonshotModel() string        { return c.MoonshotModel }
func (c *Config) GetOracleTimeout() time.Duration { return c.OracleTimeout }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

func (c *Config) GetSMTPHost() string          { return c.SMTPHost }
func (c *Config) GetSMTPPort() int             { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string      { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string      { return c.SMTPPassword }
func (c *Config) GetEmailFromAddress() string  { return c.EmailFromAddress }
func (c *Config) GetStaffEmailAddress() string { return c.StaffEmailAddress }
func (c *Config) IsEmailEnabled() bool         { return c.EmailEnabled }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func secondsEnv(key string, fallback int) time.Duration {
	return time.Duration(intEnv(key, fallback)) * time.Second
}

func minutesEnv(key string, fallback int) time.Duration {
	return time.Duration(intEnv(key, fallback)) * time.Minute
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
