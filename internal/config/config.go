// Package config provides environment-backed defaults for the CLI flags.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

type Config struct {
	Workers         int
	Threshold       float64
	TTL             time.Duration
	Interval        time.Duration // minimum time between cycles
	DescriptionPath string
	SourceURL       string
	DatabaseURL     string
	ListenAddr      string
	SkipFailed      bool
	SimilarityGate  bool
	MaxHashDistance int
	ClearScreen     bool
	LogLevel        string
}

func Load() *Config {
	return &Config{
		Workers:         getEnvInt("ITEMWATCH_WORKERS", runtime.NumCPU()),
		Threshold:       getEnvFloat("ITEMWATCH_THRESHOLD", 0.85),
		TTL:             getEnvDuration("ITEMWATCH_TTL", 2*time.Second),
		Interval:        getEnvDuration("ITEMWATCH_INTERVAL", 0),
		DescriptionPath: getEnv("ITEMWATCH_DESCRIPTIONS", "descriptions.json"),
		SourceURL:       getEnv("ITEMWATCH_SOURCE_URL", "https://platinumgod.co.uk/rebirth"),
		DatabaseURL:     getEnv("ITEMWATCH_DB", postgresFromEnv()),
		ListenAddr:      getEnv("ITEMWATCH_LISTEN", ""),
		SkipFailed:      getEnvBool("ITEMWATCH_SKIP_FAILED", false),
		SimilarityGate:  getEnvBool("ITEMWATCH_SIMILARITY_GATE", false),
		MaxHashDistance: getEnvInt("ITEMWATCH_MAX_HASH_DISTANCE", 0),
		ClearScreen:     getEnvBool("ITEMWATCH_CLEAR", true),
		LogLevel:        getEnv("ITEMWATCH_LOG_LEVEL", "info"),
	}
}

// postgresFromEnv builds a connection string from the standard POSTGRES_* variables.
// It returns "" when POSTGRES_HOST is unset, which leaves the database disabled.
func postgresFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := getEnv("POSTGRES_PORT", "5432")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD"), host, port, os.Getenv("POSTGRES_DB"))
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
