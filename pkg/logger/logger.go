package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger every engine and the HTTP layer log
// through; swapping the backend never touches a call site.
type Logger interface {
	Info(args ...interface{})
	Warn(args ...interface{})

	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger

	// WithPlanID and WithDriverID are shorthand for the two fields that
	// accompany almost every log line this service emits: which plan
	// and which driver a decision was made for.
	WithPlanID(planID string) Logger
	WithDriverID(driverID string) Logger
}

// LogrusLogger is a wrapper around logrus.Entry.
type LogrusLogger struct {
	logger *logrus.Entry
}

// NewLogger creates a new logger instance writing to stdout.
func NewLogger(level, format string) Logger {
	log := logrus.New()

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	log.SetOutput(os.Stdout)

	return &LogrusLogger{logger: logrus.NewEntry(log)}
}

// Info logs an info message.
func (l *LogrusLogger) Info(args ...interface{}) {
	l.logger.Info(args...)
}

// Warn logs a warning message.
func (l *LogrusLogger) Warn(args ...interface{}) {
	l.logger.Warn(args...)
}

// Infof logs an info message with formatting.
func (l *LogrusLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Warnf logs a warning message with formatting.
func (l *LogrusLogger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Fatalf logs a fatal message with formatting and exits.
func (l *LogrusLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}

// WithField adds a single field to the logger.
func (l *LogrusLogger) WithField(key string, value interface{}) Logger {
	return &LogrusLogger{logger: l.logger.WithField(key, value)}
}

// WithFields adds multiple fields to the logger.
func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{logger: l.logger.WithFields(fields)}
}

// WithPlanID tags the logger with the plan a log line is about.
func (l *LogrusLogger) WithPlanID(planID string) Logger {
	return l.WithField("plan_id", planID)
}

// WithDriverID tags the logger with the driver a log line is about.
func (l *LogrusLogger) WithDriverID(driverID string) Logger {
	return l.WithField("driver_id", driverID)
}
