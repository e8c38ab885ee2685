package logger

import (
	"go.uber.org/zap"
)

var zapLogger *zap.Logger

// ReplaceLogger replaces the global logger with a zap logger
func ReplaceLogger(logger *zap.Logger) {
	zapLogger = logger
	globalLogger = newZapLogger(logger)
}

// GetLogger returns the zap logger
func GetLogger() *zap.Logger {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return zapLogger
}

// Sync flushes buffered entries of the zap logger
func Sync() error {
	if zapLogger == nil {
		return nil
	}
	return zapLogger.Sync()
}

// Logger interface implementation using zap
type zapLoggerImpl struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

func newZapLogger(logger *zap.Logger) Logger {
	return &zapLoggerImpl{logger: logger, sugar: logger.Sugar()}
}

func (l *zapLoggerImpl) With(kv ...interface{}) Logger {
	sugar := l.sugar.With(kv...)
	return &zapLoggerImpl{logger: sugar.Desugar(), sugar: sugar}
}

func (l *zapLoggerImpl) Debug(v ...interface{}) {
	l.sugar.Debug(v...)
}

func (l *zapLoggerImpl) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

func (l *zapLoggerImpl) Info(v ...interface{}) {
	l.sugar.Info(v...)
}

func (l *zapLoggerImpl) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func (l *zapLoggerImpl) Warn(v ...interface{}) {
	l.sugar.Warn(v...)
}

func (l *zapLoggerImpl) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

func (l *zapLoggerImpl) Error(v ...interface{}) {
	l.sugar.Error(v...)
}

func (l *zapLoggerImpl) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

func (l *zapLoggerImpl) Fatal(v ...interface{}) {
	l.sugar.Fatal(v...)
}

func (l *zapLoggerImpl) Fatalf(format string, v ...interface{}) {
	l.sugar.Fatalf(format, v...)
}

