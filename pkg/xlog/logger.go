package xlog

import "go.uber.org/zap"

type Logger interface {
	Sugar() *zap.SugaredLogger

	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	// 返回原始zap.Logger
	Raw() *zap.Logger
}

type xlogger struct {
	*zap.Logger
}

func newLogger(l *zap.Logger) Logger {
	return &xlogger{Logger: l}
}

func (log *xlogger) Raw() *zap.Logger { return log.Logger }

// Sync flushes the global logger, call before exit.
func Sync() {
	_ = gLogger.Raw().Sync()
}
