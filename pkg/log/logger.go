package log

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps LOG_LEVEL style strings to a LogLevel. Unknown values fall back to info.
func ParseLevel(s string) LogLevel {
	for level, name := range levelNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return level
		}
	}
	return LevelInfo
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

type Logger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

func NewLogger(level LogLevel) *Logger {
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		atom,
	)
	return &Logger{
		level: atom,
		sugar: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar(),
	}
}

// NewFromZap wraps an existing zap logger, e.g. zap.NewNop() in tests.
func NewFromZap(z *zap.Logger, level LogLevel) *Logger {
	return &Logger{
		level: zap.NewAtomicLevelAt(level.zapLevel()),
		sugar: z.WithOptions(zap.AddCallerSkip(2)).Sugar(),
	}
}

// SetLevel sets the minimum level
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// With returns a child logger carrying the key/value pair on every entry.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{level: l.level, sugar: l.sugar.With(key, value)}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Fatal logs and exits
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(LevelFatal, format, args...)
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.level.Enabled(level.zapLevel()) {
		return
	}
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	switch level {
	case LevelDebug:
		l.sugar.Debug(message)
	case LevelInfo:
		l.sugar.Info(message)
	case LevelWarn:
		l.sugar.Warn(message)
	case LevelError:
		l.sugar.Error(message)
	case LevelFatal:
		l.sugar.Fatal(message)
	}
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitLogger replaces the global logger
func InitLogger(level LogLevel) {
	SetLogger(NewLogger(level))
}

func SetLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

func GetLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

func With(key string, value any) *Logger {
	return GetLogger().With(key, value)
}

func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().Fatal(format, args...)
}

func Sync() error {
	return GetLogger().Sync()
}
