package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// New creates a logger writing text lines to stderr at the given level.
func New(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.Out = os.Stderr
	if err := SetLevel(logger, level); err != nil {
		return nil, err
	}
	return logger, nil
}

// SetLevel parses level and applies it to logger.
func SetLevel(logger *logrus.Logger, level string) error {
	switch strings.ToLower(level) {
	case logrus.DebugLevel.String():
		logger.SetLevel(logrus.DebugLevel)
	case logrus.InfoLevel.String(), "":
		logger.SetLevel(logrus.InfoLevel)
	case logrus.WarnLevel.String(), "warn":
		logger.SetLevel(logrus.WarnLevel)
	case logrus.ErrorLevel.String():
		logger.SetLevel(logrus.ErrorLevel)
	default:
		return errors.Errorf("unsupported log-level: %s", level)
	}
	return nil
}

// Discard returns a logger that drops everything. Components fall back to it
// when no logger is configured.
func Discard() logrus.FieldLogger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}
