// Package logger owns the process-wide zap logger.
//
// Components receive child loggers from Named and never reach for the
// global directly. Output goes to the console, a rotated file, or both.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Log is the global logger. It is nil until Init or Setup runs.
	Log *zap.Logger
	// Sugar wraps Log for printf-style calls.
	Sugar *zap.SugaredLogger
)

// FileConfig controls the rotated log file. An empty Path disables it.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig rotates path at 20 MB and keeps a week of backups.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:       path,
		MaxSizeMB:  20,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// Options describes where log entries go.
type Options struct {
	Level   string
	Console bool
	File    FileConfig
}

// Init sets up console logging at level, plus a rotated file when logFile
// is not empty.
func Init(level, logFile string) error {
	opts := Options{Level: level, Console: true}
	if logFile != "" {
		opts.File = DefaultFileConfig(logFile)
	}
	return Setup(opts)
}

// Setup replaces the global logger.
func Setup(opts Options) error {
	Log = New(opts)
	Sugar = Log.Sugar()
	return nil
}

// New builds a logger from opts without touching the global one.
// With neither sink enabled the logger discards everything.
func New(opts Options) *zap.Logger {
	lvl := parseLevel(opts.Level)

	var cores []zapcore.Core
	if opts.Console {
		cores = append(cores, consoleCore(lvl))
	}
	if opts.File.Path != "" {
		cores = append(cores, fileCore(opts.File, lvl))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func consoleCore(lvl zapcore.Level) zapcore.Core {
	enc := encoder(zapcore.TimeEncoderOfLayout("15:04:05"), zapcore.CapitalColorLevelEncoder)
	return zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl)
}

func fileCore(fc FileConfig, lvl zapcore.Level) zapcore.Core {
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
		LocalTime:  true,
	})
	return zapcore.NewCore(encoder(zapcore.ISO8601TimeEncoder, zapcore.CapitalLevelEncoder), sink, lvl)
}

func encoder(t zapcore.TimeEncoder, l zapcore.LevelEncoder) zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		CallerKey:        "caller",
		EncodeTime:       t,
		EncodeLevel:      l,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	})
}

// parseLevel falls back to info for anything zap does not recognise.
func parseLevel(level string) zapcore.Level {
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		return lvl
	}
	return zapcore.InfoLevel
}

// Named returns the component's child of the global logger, or a no-op
// logger before Init.
func Named(component string) *zap.Logger {
	if Log == nil {
		return zap.NewNop()
	}
	return Log.Named(component)
}

// Sync flushes buffered entries.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

func Debug(msg string, fields ...zap.Field) { Named("").Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Named("").Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Named("").Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Named("").Error(msg, fields...) }

// Fatal logs msg and exits the process.
func Fatal(msg string, fields ...zap.Field) {
	if Log == nil {
		os.Exit(1)
	}
	Log.Fatal(msg, fields...)
}
