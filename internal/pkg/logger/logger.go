package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

type LogConfig struct {
	Level  string
	Format string
	Output string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type Logger struct {
	log *logrus.Logger
}

func New(cfg LogConfig) (*Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	log.SetOutput(resolveOutput(cfg))

	return &Logger{log: log}, nil
}

func resolveOutput(cfg LogConfig) io.Writer {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.entry(kv).Debug(msg) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.entry(kv).Info(msg) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.entry(kv).Warn(msg) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.entry(kv).Error(msg) }

func (l *Logger) WithError(err error) *logrus.Entry {
	return l.log.WithError(err)
}

func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.log.WithFields(fields)
}

// LogService records one call to a named service with its duration and result.
func (l *Logger) LogService(service, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := l.log.WithFields(Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	}).WithFields(fields)

	if err != nil {
		entry.WithError(err).Error("Service call failed")
		return
	}
	entry.Debug("Service call completed")
}

// LogTurn records a single conversation turn event.
func (l *Logger) LogTurn(conversationID, messageID, event string, duration time.Duration, err error) {
	entry := l.log.WithFields(Fields{
		"conversation_id": conversationID,
		"message_id":      messageID,
		"event":           event,
		"duration_ms":     duration.Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Error("Turn event failed")
		return
	}
	entry.Info("Turn event")
}

func (l *Logger) entry(kv []interface{}) *logrus.Entry {
	if len(kv) == 0 {
		return logrus.NewEntry(l.log)
	}

	fields := Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		fields[key] = kv[i+1]
	}
	return l.log.WithFields(fields)
}
