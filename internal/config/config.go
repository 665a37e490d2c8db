// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all application configuration. Missing credentials are not
// errors: the capability that needs them starts disabled.
type Config struct {
	Port        string
	FrontendURL string
	LogLevel    slog.Level

	DBPath         string
	SessionBackend string
	RedisAddr      string
	SessionTTL     time.Duration

	CatalogPath string
	ContentDir  string

	WhatsApp WhatsAppConfig
	Agent    AgentConfig

	GoogleCredentials string
	AdminNumbers      []string
	ConsoleEnabled    bool
}

// WhatsAppConfig holds Graph API and webhook settings.
type WhatsAppConfig struct {
	VerifyToken   string
	Token         string
	PhoneNumberID string
	APIVersion    string
	AppSecret     string
}

// AgentConfig selects the lesson question backend.
type AgentConfig struct {
	Address      string
	GeminiAPIKey string
	GeminiModel  string
	Timeout      time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    getEnvLevel("LOG_LEVEL", slog.LevelInfo),

		DBPath:         getEnv("DB_PATH", "./data/sundaybot.db"),
		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", BackendSQLite)),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 72*time.Hour),

		CatalogPath: getEnv("CATALOG_PATH", ""),
		ContentDir:  getEnv("CONTENT_DIR", "./content"),

		WhatsApp: WhatsAppConfig{
			VerifyToken:   getEnv("VERIFY_TOKEN", ""),
			Token:         getEnv("WHATSAPP_TOKEN", ""),
			PhoneNumberID: getEnv("PHONE_NUMBER_ID", ""),
			APIVersion:    getEnv("WHATSAPP_API_VERSION", "v19.0"),
			AppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		},
		Agent: AgentConfig{
			Address:      getEnv("AGENT_ADDR", ""),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:      getEnvDuration("AGENT_TIMEOUT", 30*time.Second),
		},

		GoogleCredentials: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		AdminNumbers:      getEnvList("ADMIN_NUMBERS"),
		ConsoleEnabled:    getEnvBool("CONSOLE_ENABLED", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.SessionBackend {
	case BackendSQLite:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q", BackendSQLite, BackendRedis, c.SessionBackend)
	}
	// Registrations and the inbox always live in SQLite.
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// WhatsAppConfigured reports whether outbound messaging has credentials.
func (c *Config) WhatsAppConfigured() bool {
	return c.WhatsApp.Token != "" && c.WhatsApp.PhoneNumberID != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90m") or a bare number of hours.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if h := getEnvInt(key, -1); h > 0 {
		return time.Duration(h) * time.Hour
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
