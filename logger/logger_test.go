package logger_test

import (
	"testing"

	"github.com/alfred-infra/poolgateway/config"
	"github.com/alfred-infra/poolgateway/logger"
	"github.com/rs/zerolog"
)

func TestNewHonorsExplicitLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := &config.Config{Env: "production", LogLevel: "warn"}
	logger.New(cfg)

	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("expected global level warn, got %v", zerolog.GlobalLevel())
	}
}

func TestNewFallsBackByEnvWhenLevelUnset(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := &config.Config{Env: "development"}
	logger.New(cfg)
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level in development, got %v", zerolog.GlobalLevel())
	}

	cfg = &config.Config{Env: "production"}
	logger.New(cfg)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level outside development, got %v", zerolog.GlobalLevel())
	}
}
