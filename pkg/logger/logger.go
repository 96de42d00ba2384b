package logger

import (
	"fmt"

	"go.uber.org/zap"
)

var (
	serviceName = "botfleet"
	base        *zap.Logger
)

// Init builds the process-wide zap logger. Helpers fall back to a
// production logger when Init was skipped (tests).
func Init(name string) error {
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	serviceName = name
	base = l
	return nil
}

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

func root() *zap.Logger {
	if base == nil {
		base, _ = zap.NewProduction(zap.AddCallerSkip(1))
	}
	return base
}

func Info(format string, args ...interface{}) {
	root().With(zap.String("service", serviceName)).Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	root().With(zap.String("service", serviceName)).Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	root().With(zap.String("service", serviceName)).Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	root().With(zap.String("service", serviceName)).Fatal(fmt.Sprintf(format, args...))
}

func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
