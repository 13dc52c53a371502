package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
// LG_LOG_LEVEL controls the log level: debug, info, warn, error (default: info)
func Init() {
	level := os.Getenv("LG_LOG_LEVEL")
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// RedactNHSNumber returns a loggable form of a 10-digit patient identifier:
// asterisks plus the last four digits. Full identifiers must never reach
// CloudWatch logs.
func RedactNHSNumber(nhsNumber string) string {
	if len(nhsNumber) <= 4 {
		return nhsNumber
	}
	return "******" + nhsNumber[len(nhsNumber)-4:]
}
