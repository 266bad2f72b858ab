// Package logging builds the process logger shared by every mode.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LevelEnv names the variable that selects the log level.
const LevelEnv = "SM_LOG_LEVEL"

// New returns a logger writing to out at the level named by SM_LOG_LEVEL.
// Unknown or empty levels fall back to info.
func New(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	logger.SetLevel(ParseLevel(os.Getenv(LevelEnv)))
	return logger
}

// ParseLevel maps a level name to a logrus level. It also accepts the
// numeric Python logging levels SageMaker jobs commonly pass (10, 20, ...).
func ParseLevel(name string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "10":
		return logrus.DebugLevel
	case "20":
		return logrus.InfoLevel
	case "30":
		return logrus.WarnLevel
	case "40", "50":
		return logrus.ErrorLevel
	}
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Discard returns a logger that drops everything. Used by tests and by
// callers that pass a nil logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard returns log, or a discarding logger when log is nil.
func OrDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return Discard()
	}
	return log
}
