package jobs

import (
	"fmt"
	"log/slog"
)

// asynqLogger routes asynq's internal logging into slog.
type asynqLogger struct {
	log *slog.Logger
}

func newAsynqLogger(log *slog.Logger) *asynqLogger {
	return &asynqLogger{log: log.With(slog.String("component", "asynq"))}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
