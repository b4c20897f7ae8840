// Package logger provides a small, centralized logging facility with
// configurable verbosity levels, backed by zap.
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("generating heatmap")
//	logger.Debugf("spot=%f vol=%f", spot, vol)
//
// Output goes to stderr in console format. Init can add a rotating JSON log
// file.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// Options configures the log sinks.
type Options struct {
	Verbosity int    `mapstructure:"verbosity"`
	Format    string `mapstructure:"format"` // console or json, for stderr
	File      string `mapstructure:"file"`   // empty: no log file

	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// current holds the active verbosity level.
// Only messages with level <= current are logged.
var current atomic.Int32

var (
	mu     sync.Mutex
	sugar  *zap.SugaredLogger
	tracer *zap.SugaredLogger
	file   io.Closer
)

func init() {
	current.Store(int32(Info))
	sugar, tracer = build(newConsoleCore(os.Stderr, "console"))
}

// Init replaces the sinks and verbosity. It is typically called once during
// startup, after configuration is loaded.
func Init(opts Options) error {
	cores := []zapcore.Core{newConsoleCore(os.Stderr, opts.Format)}

	var lj *lumberjack.Logger
	if opts.File != "" {
		lj = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		enc := zapcore.NewJSONEncoder(encoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(lj), zapcore.DebugLevel))
	}

	s, t := build(zapcore.NewTee(cores...))

	mu.Lock()
	prev := file
	sugar, tracer = s, t
	if lj != nil {
		file = lj
	} else {
		file = nil
	}
	mu.Unlock()

	SetVerbosity(opts.Verbosity)
	if prev != nil {
		return prev.Close()
	}
	return nil
}

// SetVerbosity sets the global logging verbosity.
func SetVerbosity(v int) {
	current.Store(int32(v))
}

// Verbosity returns the active level.
func Verbosity() Level {
	return Level(current.Load())
}

// Sync flushes buffered output.
func Sync() error {
	s, _ := loggers()
	return s.Sync()
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func newConsoleCore(w zapcore.WriteSyncer, format string) zapcore.Core {
	var enc zapcore.Encoder
	if strings.EqualFold(format, "json") {
		enc = zapcore.NewJSONEncoder(encoderConfig())
	} else {
		cfg := encoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewCore(enc, zapcore.Lock(w), zapcore.DebugLevel)
}

// build wraps core. Verbosity gating happens in logf, so the core accepts
// everything down to debug; trace lines go through a named child logger.
func build(core zapcore.Core) (*zap.SugaredLogger, *zap.SugaredLogger) {
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	s := l.Sugar()
	return s, s.Named("trace")
}

func loggers() (*zap.SugaredLogger, *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	return sugar, tracer
}

func logf(l Level, format string, args ...any) {
	if Verbosity() < l {
		return
	}
	s, t := loggers()
	switch l {
	case Error:
		s.Errorf(format, args...)
	case Info:
		s.Infof(format, args...)
	case Debug:
		s.Debugf(format, args...)
	default:
		t.Debugf(format, args...)
	}
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	logf(Error, format, args...)
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	logf(Info, format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	logf(Debug, format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	logf(Trace, format, args...)
}
