package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultSecretKey is only acceptable outside production.
const DefaultSecretKey = "change-me-in-production"

type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	AppName    string `env:"APP_NAME" envDefault:"Voice Assistant"`
	AppVersion string `env:"APP_VERSION" envDefault:"1.0.0"`
	Port       string `env:"PORT" envDefault:"8000"`

	// provider
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL"`
	WhisperModel    string        `env:"WHISPER_MODEL" envDefault:"whisper-1"`
	GPTModel        string        `env:"GPT_MODEL" envDefault:"gpt-4o-mini"`
	TTSModel        string        `env:"TTS_MODEL" envDefault:"tts-1"`
	TTSVoice        string        `env:"TTS_VOICE" envDefault:"alloy"`
	ChatMaxTokens   int           `env:"CHAT_MAX_TOKENS" envDefault:"150"`
	ChatTemperature float32       `env:"CHAT_TEMPERATURE" envDefault:"0.8"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"60s"`

	// database
	DatabaseDriver string `env:"DB_DRIVER"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"app.db"`

	// auth
	SecretKey                string `env:"SECRET_KEY" envDefault:"change-me-in-production"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"43200"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`

	// runtime tunables
	RateLimitWindowSeconds int   `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"10"`
	RateLimitCapacity      int   `env:"RATE_LIMIT_CAPACITY" envDefault:"5"`
	MaxUploadMB            int64 `env:"MAX_UPLOAD_MB" envDefault:"25"`

	// outbox, disabled when RedisURL is empty
	RedisURL          string `env:"REDIS_URL"`
	OutboxMaxRetry    int    `env:"OUTBOX_MAX_RETRY" envDefault:"5"`
	OutboxConcurrency int    `env:"OUTBOX_CONCURRENCY" envDefault:"2"`
}

// Load reads .env (outside production) and then the process environment.
func Load() (*Config, error) {
	// do not load .env file in production
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
}

// Validate rejects settings that are unsafe or unusable.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.SecretKey == "" || c.SecretKey == DefaultSecretKey {
			return errors.New("SECRET_KEY must be set in production")
		}
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return errors.New("OPENAI_API_KEY must be set in production")
		}
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenExpireMinutes)
	}
	if c.ChatMaxTokens <= 0 {
		return fmt.Errorf("CHAT_MAX_TOKENS must be positive, got %d", c.ChatMaxTokens)
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c *Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

func (c *Config) OutboxEnabled() bool { return strings.TrimSpace(c.RedisURL) != "" }

// Summary lists the settings worth logging at startup. Secrets are reported
// only as present/absent.
func (c *Config) Summary() []any {
	return []any{
		"env", c.AppEnv,
		"version", c.AppVersion,
		"port", c.Port,
		"db_driver", c.DatabaseDriver,
		"gpt_model", c.GPTModel,
		"whisper_model", c.WhisperModel,
		"tts_model", c.TTSModel,
		"tts_voice", c.TTSVoice,
		"openai_key_present", c.OpenAIAPIKey != "",
		"cors_origins", c.AllowedOrigins,
		"rate_limit_window_s", c.RateLimitWindowSeconds,
		"rate_limit_capacity", c.RateLimitCapacity,
		"outbox_enabled", c.OutboxEnabled(),
	}
}
