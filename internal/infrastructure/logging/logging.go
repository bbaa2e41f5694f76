package logging

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/andrescamacho/taskstream-go/internal/infrastructure/config"
)

// NewLogger builds a logrus logger from the logging configuration.
func NewLogger(cfg *config.Logging) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	logger.SetReportCaller(cfg.IncludeCaller)

	return logger
}
