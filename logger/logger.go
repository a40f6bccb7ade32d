package logger

import (
	"os"

	"github.com/alfred-infra/poolgateway/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger. cfg.LogLevel is parsed first;
// an empty or unparsable value falls back to debug in development and
// info otherwise.
func New(cfg *config.Config) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		lvl = zerolog.InfoLevel
		if cfg.Env == "development" {
			lvl = zerolog.DebugLevel
		}
	}
	zerolog.SetGlobalLevel(lvl)
	log := zerolog.New(out).With().Timestamp().Logger()
	return log
}
