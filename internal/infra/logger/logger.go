// Package logger owns the process-wide logrus logger. Components take a
// sublogger tagged with their module name.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
}

// Init applies the configured level and format ("text" or "json").
func Init(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	logger.SetOutput(os.Stdout)

	switch format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput redirects every sublogger, e.g. to a buffer in tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// NewSublogger returns an entry tagged module=baekya.<tag>.
func NewSublogger(tag string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"module": "baekya." + tag})
}
