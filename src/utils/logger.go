package utils

import (
	"context"
	"fmt"
	"os"
	"sync"

	"autoinvest/src/config"

	"github.com/sirupsen/logrus"
)

type contextKey string

const loggerKey = contextKey("logger")

var (
	fallbackOnce   sync.Once
	fallbackLogger *logrus.Logger
)

// NewLogger builds the JSON logger shared by every component of a service.
// Unknown level names fall back to info.
func NewLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetLevel(ParseLevel(cfg.Level))
	logger.SetFormatter(&logrus.JSONFormatter{})

	if cfg.ToFile {
		file, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return nil, fmt.Errorf("could not open log file %s: %w", cfg.FilePath, err)
		}
		logger.SetOutput(file)
	} else {
		logger.SetOutput(os.Stdout)
	}
	return logger, nil
}

func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func WithLogger(ctx context.Context, logger *logrus.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the request logger, or a text logger at info
// level when the context carries none.
func LoggerFromContext(ctx context.Context) *logrus.Logger {
	if logger, ok := ctx.Value(loggerKey).(*logrus.Logger); ok {
		return logger
	}
	fallbackOnce.Do(func() {
		fallbackLogger = logrus.New()
		fallbackLogger.SetLevel(logrus.InfoLevel)
		fallbackLogger.SetFormatter(&logrus.TextFormatter{})
	})
	return fallbackLogger
}
