// Package logging adapts the standard library's log package to
// application.Logger. Grounded verbatim on the teacher's own
// LogLogger (infrastructure/logging/log_logger.go) — a one-method
// Printf wrapper, since no pack example pulls a structured-logging
// library into a single-purpose worker process like this one.
package logging

import (
	"log"

	"sslvpnworker/application"
)

type LogLogger struct{}

func NewLogLogger() application.Logger {
	return &LogLogger{}
}

func (l LogLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
