package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Appender is a destination for log entries.
type Appender = zapcore.Core

// Logger is the logging interface handed to every component and service.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger named "<parent>.<subname>" sharing the parent's appenders.
	Sublogger(subname string) Logger
	// AddAppender attaches another destination. Loggers created afterwards with
	// Sublogger inherit it.
	AddAppender(appender Appender)
	SetLevel(level Level)
	GetLevel() Level
	AsZap() *zap.SugaredLogger
	Sync() error
}

type impl struct {
	name      string
	level     zap.AtomicLevel
	appenders []Appender
	// sugared skips the impl method frame so callers are reported, not impl.
	sugared   *zap.SugaredLogger
	unskipped *zap.SugaredLogger
}

func newImpl(name string, level zap.AtomicLevel, appenders ...Appender) *impl {
	imp := &impl{name: name, level: level, appenders: appenders}
	imp.rebuild()
	return imp
}

func (imp *impl) rebuild() {
	core := levelCore{Core: zapcore.NewTee(imp.appenders...), level: imp.level}
	logger := zap.New(core, zap.AddCaller())
	if imp.name != "" {
		logger = logger.Named(imp.name)
	}
	imp.unskipped = logger.Sugar()
	imp.sugared = logger.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// levelCore gates every appender behind the logger's own level so SetLevel
// applies regardless of how each appender was configured.
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c levelCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

func (c levelCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(entry.Level) {
		return checked
	}
	return c.Core.Check(entry, checked)
}

func (c levelCore) With(fields []zapcore.Field) zapcore.Core {
	return levelCore{Core: c.Core.With(fields), level: c.level}
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
	imp.rebuild()
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	return LevelFromZapLevel(imp.level.Level())
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = imp.name + "." + subname
	}
	appenders := make([]Appender, len(imp.appenders))
	copy(appenders, imp.appenders)
	return newImpl(newName, zap.NewAtomicLevelAt(imp.level.Level()), appenders...)
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.unskipped
}

func (imp *impl) Sync() error {
	return imp.sugared.Sync()
}

func (imp *impl) Debug(args ...interface{}) { imp.sugared.Debug(args...) }

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.sugared.Debugf(template, args...)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.sugared.Debugw(msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) { imp.sugared.Info(args...) }

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.sugared.Infof(template, args...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.sugared.Infow(msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) { imp.sugared.Warn(args...) }

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.sugared.Warnf(template, args...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.sugared.Warnw(msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) { imp.sugared.Error(args...) }

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.sugared.Errorf(template, args...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.sugared.Errorw(msg, keysAndValues...)
}
