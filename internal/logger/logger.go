package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide structured logger. It writes JSON to stdout at
// info level until SetLevel or SetOutput change it.
var Logger = newLogger()

// levels maps the accepted LOG_LEVEL names
var levels = map[string]logrus.Level{
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return l
}

// ParseLevel resolves a level name. The empty string means info.
func ParseLevel(name string) (logrus.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return logrus.InfoLevel, nil
	}
	level, ok := levels[name]
	if !ok {
		return logrus.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
	}
	return level, nil
}

// SetLevel changes the minimum level written
func SetLevel(level logrus.Level) {
	Logger.SetLevel(level)
}

// SetOutput redirects log output, e.g. to stderr for CLI runs
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

// Info logs an info message
func Info(msg string) {
	Logger.Info(msg)
}
