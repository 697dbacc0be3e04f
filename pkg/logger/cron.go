package logger

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type cronLogger struct {
	sugar *zap.SugaredLogger
}

// CronLogger adapts a zap logger to the cron.Logger interface. Routine
// scheduler chatter is logged at debug level.
func CronLogger(l *zap.Logger) cron.Logger {
	if l == nil {
		l = WithModule("cron")
	}
	return cronLogger{sugar: l.Sugar()}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.sugar.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
