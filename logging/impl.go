package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface taken by every component that wants to report progress.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})

	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Fatal logs and then calls os.Exit(1).
	Fatal(args ...interface{})

	// Sublogger returns a logger named "<name>.<subname>" sharing the same outputs.
	Sublogger(subname string) Logger
	// AsZap exposes the underlying sugared logger for libraries that want one.
	AsZap() *zap.SugaredLogger
	Sync() error
}

type impl struct {
	name  string
	sugar *zap.SugaredLogger
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{name: newName, sugar: imp.sugar.Named(subname)}
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.sugar
}

func (imp *impl) Sync() error {
	return imp.sugar.Sync()
}

func (imp *impl) Debug(args ...interface{}) { imp.sugar.Debug(args...) }
func (imp *impl) Info(args ...interface{})  { imp.sugar.Info(args...) }
func (imp *impl) Warn(args ...interface{})  { imp.sugar.Warn(args...) }
func (imp *impl) Error(args ...interface{}) { imp.sugar.Error(args...) }
func (imp *impl) Fatal(args ...interface{}) { imp.sugar.Fatal(args...) }

func (imp *impl) Debugf(template string, args ...interface{}) { imp.sugar.Debugf(template, args...) }
func (imp *impl) Infof(template string, args ...interface{})  { imp.sugar.Infof(template, args...) }
func (imp *impl) Warnf(template string, args ...interface{})  { imp.sugar.Warnf(template, args...) }
func (imp *impl) Errorf(template string, args ...interface{}) { imp.sugar.Errorf(template, args...) }

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Debugw(msg, keysAndValues...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.sugar.Infow(msg, keysAndValues...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Warnw(msg, keysAndValues...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Errorw(msg, keysAndValues...)
}

// DefaultTimeFormatStr is the timestamp layout used by the console encoder.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

func utcTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(DefaultTimeFormatStr))
}
