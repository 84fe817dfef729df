package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans each entry out to its appenders. Subloggers copy the appender slice but get their own level.
type impl struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{name: name, level: NewAtomicLevelAt(imp.GetLevel()), inUTC: imp.inUTC, appenders: imp.appenders}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

// AsZap returns a zap logger over the appenders that are zap cores, gated by this logger's level.
func (imp *impl) AsZap() *zap.SugaredLogger {
	var cores []zapcore.Core
	for _, appender := range imp.appenders {
		if core, ok := appender.(zapcore.Core); ok {
			cores = append(cores, core)
		}
	}
	core := zapcore.NewTee(cores...)
	leveled, err := zapcore.NewIncreaseLevelCore(core, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= imp.GetLevel().AsZap()
	}))
	if err != nil {
		leveled = core
	}
	return zap.New(leveled, zap.AddCaller()).Sugar().Named(imp.name)
}

func (imp *impl) enabled(forced bool, level Level) bool {
	return forced || level >= imp.GetLevel()
}

func (imp *impl) write(entry zapcore.Entry, fields []zapcore.Field) {
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// entry must be called exactly three frames below the public logging method; see caller.
func (imp *impl) entry(level Level, msg string) zapcore.Entry {
	return zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     caller(),
	}
}

func (imp *impl) log(forced bool, level Level, args ...interface{}) {
	if imp.enabled(forced, level) {
		imp.write(imp.entry(level, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) logf(forced bool, level Level, template string, args ...interface{}) {
	if imp.enabled(forced, level) {
		imp.write(imp.entry(level, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) logw(forced bool, level Level, msg string, keysAndValues ...interface{}) {
	if imp.enabled(forced, level) {
		imp.write(imp.entry(level, msg), toFields(keysAndValues))
	}
}

// toFields pairs up alternating keys and values. A trailing key with no value is kept with an error value.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) { imp.log(false, DEBUG, args...) }
func (imp *impl) Debugf(template string, args ...interface{}) { imp.logf(false, DEBUG, template, args...) }
func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) { imp.logw(false, DEBUG, msg, keysAndValues...) }
func (imp *impl) Info(args ...interface{}) { imp.log(false, INFO, args...) }
func (imp *impl) Infof(template string, args ...interface{}) { imp.logf(false, INFO, template, args...) }
func (imp *impl) Infow(msg string, keysAndValues ...interface{}) { imp.logw(false, INFO, msg, keysAndValues...) }
func (imp *impl) Warn(args ...interface{}) { imp.log(false, WARN, args...) }
func (imp *impl) Warnf(template string, args ...interface{}) { imp.logf(false, WARN, template, args...) }
func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) { imp.logw(false, WARN, msg, keysAndValues...) }
func (imp *impl) Error(args ...interface{}) { imp.log(false, ERROR, args...) }
func (imp *impl) Errorf(template string, args ...interface{}) { imp.logf(false, ERROR, template, args...) }
func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) { imp.logw(false, ERROR, msg, keysAndValues...) }

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	imp.logf(IsDebugMode(ctx), DEBUG, template, args...)
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.logw(IsDebugMode(ctx), DEBUG, msg, keysAndValues...)
}

// caller reports the code that called the public logging method:
// caller <- entry <- log/logf/logw <- Infow etc. <- user code.
func caller() zapcore.EntryCaller {
	const skip = 4
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	ec := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		ec.Function = fn.Name()
	}
	return ec
}
