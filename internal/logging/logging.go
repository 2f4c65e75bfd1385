// Package logging provides the shared logger factory for all snaplapse
// scopes. Log levels are controlled through the usual pion logging
// environment variables.
package logging

import (
	"github.com/pion/logging"
)

var loggerFactory = logging.NewDefaultLoggerFactory()

func NewLogger(scope string) logging.LeveledLogger {
	return loggerFactory.NewLogger(scope)
}
