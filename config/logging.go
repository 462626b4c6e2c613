package config

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the standard logger from DEBUG and LOG_FORMAT and
// returns it for injection into components.
func SetupLogging() *log.Logger {
	logger := log.StandardLogger()
	logger.SetOutput(os.Stdout)
	if Bool("DEBUG") {
		logger.SetLevel(log.DebugLevel)
	}
	if strings.EqualFold(String("LOG_FORMAT", ""), "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}
