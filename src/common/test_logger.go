package common

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// testWriter forwards every log line to t.Log, so logs only show up for
// failing or verbose tests.
type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(d []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(d), "\n"))
	return len(d), nil
}

// NewTestLogger returns a logrus Logger that writes through t.Log.
func NewTestLogger(t testing.TB, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.Out = testWriter{t: t}
	logger.Level = level
	return logger
}

// NewTestEntry is NewTestLogger with a prefix field, the shape every component
// constructor expects.
func NewTestEntry(t testing.TB, level logrus.Level) *logrus.Entry {
	return NewTestLogger(t, level).WithField("prefix", "test")
}
