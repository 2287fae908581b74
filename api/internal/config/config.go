package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port" env:"PORT"`

	GeminiAPIKey  string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiModel   string `yaml:"gemini_model" env:"GEMINI_MODEL"`
	GeminiBaseURL string `yaml:"gemini_base_url" env:"GEMINI_BASE_URL"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	SessionTTL      time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout" env:"ANALYSIS_TIMEOUT"`

	APIRateLimit       float64  `yaml:"api_rate_limit" env:"API_RATE_LIMIT"`
	APIRateBurst       int      `yaml:"api_rate_burst" env:"API_RATE_BURST"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// TrustProxy honours X-Forwarded-For / X-Real-IP for client addresses.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY"`

	Preview Preview `yaml:"preview"`

	TelegramBotToken   string `yaml:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookURL string `yaml:"telegram_webhook_url" env:"TELEGRAM_WEBHOOK_URL"`
}

type Preview struct {
	Backend   string `yaml:"backend" env:"PREVIEW_BACKEND"`
	Endpoint  string `yaml:"endpoint" env:"PREVIEW_MINIO_ENDPOINT"`
	Region    string `yaml:"region" env:"PREVIEW_MINIO_REGION"`
	Bucket    string `yaml:"bucket" env:"PREVIEW_MINIO_BUCKET"`
	AccessKey string `yaml:"access_key" env:"PREVIEW_MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"PREVIEW_MINIO_SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"PREVIEW_MINIO_USE_SSL"`
}

func Default() *Config {
	return &Config{
		Port:               "8000",
		GeminiModel:        "gemini-2.5-flash",
		LogLevel:           "info",
		LogFormat:          "json",
		MaxUploadBytes:     20 << 20,
		SessionTTL:         2 * time.Hour,
		APIRateLimit:       1,
		APIRateBurst:       5,
		CORSAllowedOrigins: []string{"*"},
		Preview:            Preview{Backend: "memory", Region: "us-east-1"},
	}
}

// Load applies, in order: defaults, the YAML file at path (if any) and the
// environment. path falls back to CONFIG_PATH.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that do not depend on which command runs.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("port is empty"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if c.AnalysisTimeout < 0 {
		errs = append(errs, errors.New("analysis_timeout must not be negative"))
	}
	if c.APIRateLimit < 0 || c.APIRateBurst < 0 {
		errs = append(errs, errors.New("api rate limit must not be negative"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	switch strings.ToLower(c.Preview.Backend) {
	case "", "memory":
	case "minio":
		if c.Preview.Endpoint == "" || c.Preview.Bucket == "" {
			errs = append(errs, errors.New("minio preview backend needs endpoint and bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown preview backend %q", c.Preview.Backend))
	}
	return errors.Join(errs...)
}

// RequireGemini is checked by commands that call the model.
func (c *Config) RequireGemini() error {
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return errors.New("missing required env GEMINI_API_KEY")
	}
	return nil
}

func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
