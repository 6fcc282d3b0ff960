package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	App      AppConfig      `yaml:"app"`
	Email    EmailConfig    `yaml:"email"`
	SMS      SMSConfig      `yaml:"sms"`
	Notify   NotifyConfig   `yaml:"notify"`
	Bedrock  BedrockConfig  `yaml:"bedrock"`
	Photos   PhotosConfig   `yaml:"photos"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	GuardTTLSecs   int      `yaml:"guard_ttl_seconds"`
	AdminToken     string   `yaml:"admin_token"`
}

// GetHost returns the server host, honoring SERVER_HOST.
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// GuardTTL bounds how long a session's mutation lease can be held.
func (c ServerConfig) GuardTTL() time.Duration {
	return time.Duration(c.GuardTTLSecs) * time.Second
}

// DatabaseConfig selects the SQL backend. Driver is "postgres" or "sqlite3".
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// IsPostgres reports whether the configured driver is PostgreSQL.
func (c DatabaseConfig) IsPostgres() bool { return c.Driver == "postgres" }

// RedisConfig is optional; an empty URL disables Redis.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AppConfig holds roster-wide behavior.
type AppConfig struct {
	Timezone            string  `yaml:"timezone"`
	Maintenance         bool    `yaml:"maintenance"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	PublicURL           string  `yaml:"public_url"`
}

// Location loads the configured timezone, falling back to UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EmailConfig selects and configures the email transport.
type EmailConfig struct {
	Provider string      `yaml:"provider"` // "ses" or "gmail"
	From     string      `yaml:"from"`
	FromName string      `yaml:"from_name"`
	SES      SESConfig   `yaml:"ses"`
	Gmail    GmailConfig `yaml:"gmail"`
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GmailConfig holds the OAuth2 refresh-token credentials of the sending account.
type GmailConfig struct {
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	RefreshToken   string `yaml:"refresh_token"`
	User           string `yaml:"user"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c GmailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Configured reports whether all OAuth2 credentials are present.
func (c GmailConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "" && c.User != ""
}

// SMSConfig holds Twilio configuration
type SMSConfig struct {
	AccountSID     string `yaml:"account_sid"`
	AuthToken      string `yaml:"auth_token"`
	From           string `yaml:"from"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SMSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Configured reports whether the Twilio credentials and sender are present.
func (c SMSConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// NotifyConfig holds the scheduled notifier settings.
type NotifyConfig struct {
	SendTimeoutSeconds int `yaml:"send_timeout_seconds"`
	BirthdayHour       int `yaml:"birthday_hour"`
	ReminderHour       int `yaml:"reminder_hour"`
	TickSeconds        int `yaml:"tick_seconds"`
	LockTTLSeconds     int `yaml:"lock_ttl_seconds"`
}

// SendTimeout bounds one provider call.
func (c NotifyConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// Tick returns the scheduler polling interval.
func (c NotifyConfig) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// LockTTL bounds how long a dedup lock survives a crashed sender.
func (c NotifyConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// BedrockConfig holds the chat assistant model settings.
type BedrockConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	ModelID   string `yaml:"model_id"`
	MaxTokens int    `yaml:"max_tokens"`
}

// PhotosConfig holds the S3 bucket that stores profile photos.
type PhotosConfig struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	PublicBaseURL string `yaml:"public_base_url"`
	MaxSizeMB     int    `yaml:"max_size_mb"`
}

// Enabled reports whether photo uploads are configured.
func (c PhotosConfig) Enabled() bool { return c.Bucket != "" }

// LogConfig selects level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file. An empty path yields the
// defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Server.GuardTTLSecs == 0 {
		cfg.Server.GuardTTLSecs = 30
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Database.URL == "" && cfg.Database.Driver == "sqlite3" {
		cfg.Database.URL = "aniversaris.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "Europe/Madrid"
	}
	if cfg.App.SimilarityThreshold == 0 {
		cfg.App.SimilarityThreshold = 0.75
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "gmail"
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "La família"
	}
	if cfg.Email.SES.Region == "" {
		cfg.Email.SES.Region = "eu-west-1"
	}
	if cfg.Email.SES.TimeoutSeconds == 0 {
		cfg.Email.SES.TimeoutSeconds = 20
	}
	if cfg.Email.Gmail.BaseURL == "" {
		cfg.Email.Gmail.BaseURL = "https://gmail.googleapis.com"
	}
	if cfg.Email.Gmail.TimeoutSeconds == 0 {
		cfg.Email.Gmail.TimeoutSeconds = 20
	}
	if cfg.SMS.BaseURL == "" {
		cfg.SMS.BaseURL = "https://api.twilio.com"
	}
	if cfg.SMS.TimeoutSeconds == 0 {
		cfg.SMS.TimeoutSeconds = 20
	}
	if cfg.Notify.SendTimeoutSeconds == 0 {
		cfg.Notify.SendTimeoutSeconds = 20
	}
	if cfg.Notify.BirthdayHour == 0 {
		cfg.Notify.BirthdayHour = 8
	}
	if cfg.Notify.ReminderHour == 0 {
		cfg.Notify.ReminderHour = 19
	}
	if cfg.Notify.TickSeconds == 0 {
		cfg.Notify.TickSeconds = 60
	}
	if cfg.Notify.LockTTLSeconds == 0 {
		cfg.Notify.LockTTLSeconds = 120
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "eu-west-1"
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Bedrock.MaxTokens == 0 {
		cfg.Bedrock.MaxTokens = 1000
	}
	if cfg.Photos.Region == "" {
		cfg.Photos.Region = "eu-west-1"
	}
	if cfg.Photos.MaxSizeMB == 0 {
		cfg.Photos.MaxSizeMB = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.App.Timezone, "APP_TIMEZONE")
	setString(&cfg.App.PublicURL, "APP_PUBLIC_URL")
	if v := os.Getenv("MAINTENANCE"); v != "" {
		cfg.App.Maintenance = ParseFlag(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	setString(&cfg.Server.AdminToken, "ADMIN_TOKEN")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	setString(&cfg.Email.Provider, "EMAIL_PROVIDER")
	setString(&cfg.Email.From, "EMAIL_FROM")
	setString(&cfg.Email.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	setString(&cfg.Email.SES.SecretKey, "AWS_SES_SECRET_KEY")
	setString(&cfg.Email.SES.Region, "AWS_SES_REGION")
	setString(&cfg.Email.Gmail.ClientID, "GMAIL_CLIENT_ID")
	setString(&cfg.Email.Gmail.ClientSecret, "GMAIL_CLIENT_SECRET")
	setString(&cfg.Email.Gmail.RefreshToken, "GMAIL_REFRESH_TOKEN")
	setString(&cfg.Email.Gmail.User, "GMAIL_USER")
	if cfg.Email.From == "" {
		cfg.Email.From = cfg.Email.Gmail.User
	}

	setString(&cfg.SMS.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.SMS.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.SMS.From, "TWILIO_PHONE_NUMBER")

	setString(&cfg.Bedrock.ModelID, "BEDROCK_MODEL_ID")
	setString(&cfg.Bedrock.Region, "AWS_REGION")
	setString(&cfg.Photos.Bucket, "PHOTOS_BUCKET")
	setString(&cfg.Photos.PublicBaseURL, "PHOTOS_PUBLIC_BASE_URL")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	return cfg, nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// ParseFlag interprets the boolean-like values used by the settings table
// and environment: true, si, sí, 1, yes and on are true, case-insensitive.
func ParseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "si", "sí", "1", "yes", "on":
		return true
	default:
		return false
	}
}
