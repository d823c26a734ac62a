package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	// Telegram
	TelegramToken string
	Environment   string // development | production
	WebhookDomain string
	WebhookSecret string
	HTTPPort      string

	// Model
	ModelProvider   string // gemini | ollama
	GeminiAPIKey    string
	GeminiModel     string
	OllamaHost      string
	OllamaModel     string
	MaxOutputTokens int
	Temperature     float64
	ModelTimeout    time.Duration

	// Speech
	SpeechAPIKey   string
	SpeechLanguage string

	// Conversation pipeline
	MaxContextMessages int
	MaxStoredMessages  int
	MaxFragmentSize    int
	FragmentDelay      time.Duration
	SingleReplyGuard   bool
	ActivitySource     string // updated | trim

	// Storage
	StorageDriver       string // file | postgres | sqlite
	DataDir             string
	DialogEncryptionKey string // hex, optional
	DatabaseURL         string
	SQLitePath          string

	// Admin API
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	JWTSecret         string
	TokenExpiration   time.Duration
	CORSOrigins       []string
	StaticDir         string

	// Logging
	LogLevel  string
	LogPretty bool
}

// WebhookPath is where Telegram delivers updates in production.
const WebhookPath = "/telegram/webhook"

// IsProduction reports whether updates arrive by webhook instead of long polling.
func (c *Config) IsProduction() bool { return c.Environment == "production" }

// WebhookURL is the public URL registered with Telegram.
func (c *Config) WebhookURL() string {
	return strings.TrimRight(c.WebhookDomain, "/") + WebhookPath
}

// AdminEnabled reports whether admin credentials were configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminPassword != "" || c.AdminPasswordHash != ""
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file, using environment variables only")
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		Environment:   getEnv("ENVIRONMENT", "development"),
		WebhookDomain: getEnv("WEBHOOK_DOMAIN", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		HTTPPort:      getEnv("PORT", "3000"),

		ModelProvider:   strings.ToLower(getEnv("MODEL_PROVIDER", "gemini")),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:     getEnv("OLLAMA_MODEL", "llama3.1"),
		MaxOutputTokens: intVar("MODEL_MAX_OUTPUT_TOKENS", 500),
		ModelTimeout:    time.Duration(intVar("MODEL_TIMEOUT_SECONDS", 60)) * time.Second,

		SpeechLanguage: getEnv("SPEECH_LANGUAGE", "ru-RU"),

		MaxContextMessages: intVar("MAX_CONTEXT_MESSAGES", 20),
		MaxStoredMessages:  intVar("MAX_STORED_MESSAGES", 100),
		MaxFragmentSize:    intVar("MAX_FRAGMENT_SIZE", 4000),
		FragmentDelay:      time.Duration(intVar("FRAGMENT_DELAY_MS", 1000)) * time.Millisecond,
		ActivitySource:     strings.ToLower(getEnv("ACTIVITY_SOURCE", "updated")),

		StorageDriver:       strings.ToLower(getEnv("STORAGE_DRIVER", "file")),
		DataDir:             getEnv("DATA_DIR", "./data"),
		DialogEncryptionKey: getEnv("DIALOG_ENCRYPTION_KEY", ""),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		SQLitePath:          getEnv("SQLITE_PATH", "./data/tutorbot.db"),

		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		TokenExpiration:   time.Duration(intVar("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		CORSOrigins:       splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		StaticDir:         getEnv("STATIC_DIR", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	// Speech falls back to the Gemini key; both are Google Cloud API keys.
	cfg.SpeechAPIKey = getEnv("GOOGLE_CLOUD_API_KEY", cfg.GeminiAPIKey)

	var err error
	if cfg.Temperature, err = getEnvFloat("MODEL_TEMPERATURE", 0.7); err != nil {
		errs = append(errs, err)
	}
	if cfg.SingleReplyGuard, err = getEnvBool("SINGLE_REPLY_GUARD", true); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogPretty, err = getEnvBool("LOG_PRETTY", false); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("port", cfg.HTTPPort).
		Str("modelProvider", cfg.ModelProvider).
		Str("storageDriver", cfg.StorageDriver).
		Bool("adminEnabled", cfg.AdminEnabled()).
		Msg("configuration loaded")
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	require := func(key, value string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s environment variable is not set", key))
		}
	}
	oneOf := func(key, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s must be one of %v, got %q", key, allowed, value))
	}
	positive := func(key string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, v))
		}
	}

	require("TELEGRAM_BOT_TOKEN", c.TelegramToken)
	oneOf("ENVIRONMENT", c.Environment, "development", "production")
	if c.IsProduction() {
		require("WEBHOOK_DOMAIN", c.WebhookDomain)
	}

	oneOf("MODEL_PROVIDER", c.ModelProvider, "gemini", "ollama")
	if c.ModelProvider == "gemini" {
		require("GEMINI_API_KEY", c.GeminiAPIKey)
	}
	positive("MODEL_MAX_OUTPUT_TOKENS", c.MaxOutputTokens)
	positive("MODEL_TIMEOUT_SECONDS", int(c.ModelTimeout/time.Second))
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("MODEL_TEMPERATURE must be within [0, 2], got %v", c.Temperature))
	}

	positive("MAX_CONTEXT_MESSAGES", c.MaxContextMessages)
	positive("MAX_STORED_MESSAGES", c.MaxStoredMessages)
	positive("MAX_FRAGMENT_SIZE", c.MaxFragmentSize)
	if c.FragmentDelay < 0 {
		errs = append(errs, fmt.Errorf("FRAGMENT_DELAY_MS must not be negative"))
	}
	oneOf("ACTIVITY_SOURCE", c.ActivitySource, "updated", "trim")

	oneOf("STORAGE_DRIVER", c.StorageDriver, "file", "postgres", "sqlite")
	if c.StorageDriver == "postgres" {
		require("DATABASE_URL", c.DatabaseURL)
	}

	if c.AdminEnabled() {
		require("JWT_SECRET", c.JWTSecret)
		positive("JWT_EXPIRATION_HOURS", int(c.TokenExpiration/time.Hour))
	}
	return errs
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Debug().Str("key", key).Msg("env variable not set, using default")
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
