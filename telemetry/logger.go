package telemetry

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger creates the node's root logger. In development environments the
// output is a human-readable console stream; everywhere else it is one JSON
// object per line. The level is installed as zerolog's global level so a
// configuration reload can adjust it without rebuilding derived loggers.
// The returned logger is also installed as the package-level default for
// zerolog/log.
func NewLogger(app, level, environment string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var logger zerolog.Logger
	if environment == "development" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(os.Stdout)
	}

	logger = logger.With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
