package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronLogger forwards robfig/cron's key-value logging to slog with a component attribute.
type CronLogger struct {
	log *slog.Logger
}

var _ cron.Logger = (*CronLogger)(nil)

// New returns a cron-compatible logger tagged with component. A nil base discards output.
func New(base *slog.Logger, component string) *CronLogger {
	if base == nil {
		return &CronLogger{}
	}
	return &CronLogger{log: base.With("component", component)}
}

// Info maps cron's routine messages (schedule, wake, run) to debug level.
func (l *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.log != nil {
		l.log.Debug(msg, keysAndValues...)
	}
}

// Error logs cron failures such as recovered job panics.
func (l *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	if l.log != nil {
		l.log.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
	}
}
