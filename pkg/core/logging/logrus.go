// Package logging owns the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

// Get returns the shared logger.
func Get() *logrus.Logger {
	return logg
}

// SetLevel parses a level name ("debug", "info", ...). Unknown names keep
// the current level and return false.
func SetLevel(name string) bool {
	if name == "" {
		return false
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(name))
	if err != nil {
		return false
	}
	logg.SetLevel(lvl)
	return true
}

// SetOutput redirects log output, mainly for tests and the CLI.
func SetOutput(w io.Writer) {
	logg.SetOutput(w)
}

// WithComponent tags entries with the emitting component.
func WithComponent(name string) *logrus.Entry {
	return logg.WithField("component", name)
}

// LogError records a failure with enough context to find the caller.
func LogError(moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logg.WithFields(fields).Error(err.Error())
}
