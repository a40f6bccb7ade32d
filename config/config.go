// Package config loads the demo gateway's configuration from
// environment variables (plus an optional .env file): a single struct,
// a Load() that applies fallbacks, and small per-type env helpers.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the demo reverse-proxy binary's configuration. It does
// not configure the pool library itself — pool.InitSpecific/InitGlobal
// take their parameters directly from the caller — only the ambient
// server and its upstream set.
type Config struct {
	// Server
	Addr string
	Env  string

	// Upstream targets the demo proxy load-balances across.
	UpstreamURLs []string

	// Pool tuning
	PoolCapacity   int
	IdleTimeout    time.Duration
	ConnectRetries int
	UseGlobalPool  bool

	// Redis-backed target-seed cache for a global pool. Empty disables it.
	RedisURL string

	GracefulTimeout time.Duration
	LogLevel        string
}

// Load reads configuration from environment variables and an optional
// .env file in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("POOLGATEWAY_GRACEFUL_TIMEOUT_SEC", 15)
	idleTimeoutMs := getEnvInt("POOLGATEWAY_IDLE_TIMEOUT_MS", 2000)

	return &Config{
		Addr:            getEnv("POOLGATEWAY_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		UpstreamURLs:    getEnvList("POOLGATEWAY_UPSTREAMS", nil),
		PoolCapacity:    getEnvInt("POOLGATEWAY_POOL_CAPACITY", 64),
		IdleTimeout:     time.Duration(idleTimeoutMs) * time.Millisecond,
		ConnectRetries:  getEnvInt("POOLGATEWAY_CONNECT_RETRIES", 1),
		UseGlobalPool:   getEnvBool("POOLGATEWAY_GLOBAL_POOL", false),
		RedisURL:        getEnv("REDIS_URL", ""),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
