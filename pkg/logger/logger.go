package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process-wide logger. Components attach themselves with
// WithComponent so log lines stay greppable per subsystem.
func New(level string, jsonFormat bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if jsonFormat {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return l
}

func WithComponent(l *logrus.Logger, component string) *logrus.Entry {
	return l.WithField("component", component)
}
