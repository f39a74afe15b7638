// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/config"
)

// Setup applies level and format from cfg to the standard logrus logger.
// Output goes to out when it is non-nil.
func Setup(cfg config.LogConfig, out io.Writer) {
	logrus.SetLevel(ParseLevel(cfg.Level))
	if strings.EqualFold(cfg.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if out != nil {
		logrus.SetOutput(out)
	}
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(value string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return logrus.ErrorLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}
