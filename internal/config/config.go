package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/thereayou/chatsync/internal/chat"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Port           string        `yaml:"port"`
	Env            string        `yaml:"env"`
	LogLevel       string        `yaml:"log_level"`
	DatabaseDriver string        `yaml:"database_driver"`
	DatabaseURL    string        `yaml:"database_url"`
	RedisURL       string        `yaml:"redis_url"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	Chat           chat.Config   `yaml:"chat"`
}

func Default() *Config {
	return &Config{
		Port:           "8080",
		Env:            "development",
		LogLevel:       "info",
		DatabaseDriver: "postgres",
		TokenTTL:       24 * time.Hour,
		Chat:           chat.DefaultConfig(),
	}
}

// Load собирает конфиг: значения по умолчанию, затем YAML из path (если
// задан), затем переменные окружения. .env.local и .env подхватываются,
// если лежат рядом.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setFromEnv(&c.Port, "PORT")
	setFromEnv(&c.Env, "ENV")
	setFromEnv(&c.LogLevel, "LOG_LEVEL")
	setFromEnv(&c.DatabaseDriver, "DATABASE_DRIVER")
	setFromEnv(&c.DatabaseURL, "DATABASE_URL")
	setFromEnv(&c.RedisURL, "REDIS_URL")
	setFromEnv(&c.JWTSecret, "JWT_SECRET")
	setFromEnv(&c.Chat.RoomsCollection, "ROOMS_COLLECTION")
	setFromEnv(&c.Chat.UsersCollection, "USERS_COLLECTION")

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: TOKEN_TTL: %v", ErrInvalid, err)
		}
		c.TokenTTL = ttl
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Chat.Validate(); err != nil {
		return err
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", ErrInvalid)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	if c.Env == "production" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required in production", ErrInvalid)
		}
		if c.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL is required in production", ErrInvalid)
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("%w: JWT_SECRET is required in production", ErrInvalid)
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
