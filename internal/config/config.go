package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Provider exposes the configuration values the rest of the application
// depends on. Handing out an interface keeps tests free to substitute their
// own values without touching the process environment.
type Provider interface {
	GetAddr() string
	GetHistoryLimit() int
	GetTypingTTL() time.Duration
	GetTypingSweepInterval() time.Duration
	GetShutdownTimeout() time.Duration
}

// Config holds all configuration for the relay server.
type Config struct {
	Addr                string        `validate:"required"`
	HistoryLimit        int           `validate:"gte=1"`
	TypingTTL           time.Duration `validate:"gt=0"`
	TypingSweepInterval time.Duration `validate:"gt=0"`
	ShutdownTimeout     time.Duration `validate:"gt=0"`
}

// New loads configuration from environment variables, falling back to the
// defaults the original deployment ran with.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:                getEnv("RELAY_ADDR", ":3000"),
		HistoryLimit:        getEnvInt("RELAY_HISTORY_LIMIT", 100),
		TypingTTL:           getEnvDuration("RELAY_TYPING_TTL", 3*time.Second),
		TypingSweepInterval: getEnvDuration("RELAY_TYPING_SWEEP_INTERVAL", time.Second),
		ShutdownTimeout:     getEnvDuration("RELAY_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) GetAddr() string                       { return c.Addr }
func (c *Config) GetHistoryLimit() int                  { return c.HistoryLimit }
func (c *Config) GetTypingTTL() time.Duration           { return c.TypingTTL }
func (c *Config) GetTypingSweepInterval() time.Duration { return c.TypingSweepInterval }
func (c *Config) GetShutdownTimeout() time.Duration     { return c.ShutdownTimeout }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
