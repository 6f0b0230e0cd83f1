// Package logger builds the process-wide logrus logger.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger at level. JSON output is used unless pretty is set,
// which switches to the text formatter for local development.
func New(level string, pretty bool) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, pretty)
}

func NewWithOutput(out io.Writer, level string, pretty bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if pretty {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		l.WithField("level", level).Warn("unknown log level, using info")
	}
	l.SetLevel(lvl)
	return l
}

// Discard returns a logger that writes nowhere, for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
