package logger

import (
	"fmt"
	"io"
	"os"

	"artnetnode/internal/config"
	"github.com/sirupsen/logrus"
)

type Log struct {
	*logrus.Entry
}

// NewLogger builds the process logger from the [logger] config section.
func NewLogger(cfg config.LogConf) (*Log, error) {
	log := logrus.New()

	log.SetOutput(os.Stdout)

	switch cfg.Format {
	case "json":
		log.Formatter = &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		}
	case "", "text":
		log.Formatter = &logrus.TextFormatter{
			TimestampFormat:  "2006-01-02 15:04:05.0000",
			DisableColors:    cfg.NoColor,
			ForceColors:      !cfg.NoColor,
			FullTimestamp:    true,
			QuoteEmptyFields: true,
		}
	default:
		return nil, fmt.Errorf("logger. Unknown format: %s", cfg.Format)
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger. Error in settings (level: %s): %w", cfg.Level, err)
	}
	log.SetLevel(level)
	// Disable concurrency mutex as we use Stdout.
	log.SetNoLock()
	log.Debug("set level: ", level)

	return &Log{Entry: log.WithFields(nil)}, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Log {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return &Log{Entry: log.WithFields(nil)}
}

// With will add the fields to the formatted log entry.
func (l *Log) With(fields Fields) *Log {
	return &Log{Entry: l.WithFields(logrus.Fields(fields))}
}

func (l *Log) GetLevel() string {
	return l.Logger.Level.String()
}

// Fields are a representation of formatted log fields.
type Fields map[string]interface{}

// Logger is what components receive instead of the concrete *Log.
type Logger interface {
	// GetLevel returns the active level name.
	GetLevel() string
	With(fields Fields) *Log
}
