package logging

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

const (
	FormatText = "text"
	FormatJson = "json"
)

var validLogFormats = map[string]bool{
	FormatText: true,
	FormatJson: true,
}

// Config defines logging configuration for a compute node.
type Config struct {
	// Log level, e.g. info, debug etc
	Level string
	// Logging format, either text or json
	Format string
}

// Configure applies c to the given logrus logger.
func Configure(logger *logrus.Logger, out io.Writer, c Config) error {
	if err := validateLogFormat(c.Format); err != nil {
		return err
	}
	level, err := parseLogLevel(c.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetOutput(out)
	if c.Format == FormatJson {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	}
	return nil
}

func validateLogFormat(f string) error {
	if f == "" {
		return nil
	}
	_, ok := validLogFormats[f]
	if !ok {
		return errors.Errorf("unknown log format: %s.  Valid formats are %s", f, maps.Keys(validLogFormats))
	}
	return nil
}

func parseLogLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel, nil
	case "", "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "panic":
		return logrus.PanicLevel, nil
	case "fatal":
		return logrus.FatalLevel, nil
	default:
		return logrus.InfoLevel, errors.Errorf("unknown level: %s", level)
	}
}
