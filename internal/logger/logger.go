// Package logger is the LibOS-wide structured logger. It is grounded on
// gcsfuse's internal/logger package, which the retrieved example pack keeps
// only as a _test.go file; the test fully pins down the shape reproduced
// here: a log/slog logger with a custom TRACE level below DEBUG, a
// text-or-JSON handler factory, a package-level swappable default logger,
// and "severity=LEVEL message=..." / {"timestamp":...,"severity":...} output
// formats. Rotation is via gopkg.in/natefinch/lumberjack.v2, a direct
// teacher dependency.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below slog.LevelDebug, matching the teacher's five-level
// TRACE/DEBUG/INFO/WARNING/ERROR scheme.
const LevelTrace slog.Level = slog.LevelDebug - 4

var levelNames = map[slog.Level]string{
	LevelTrace:        "TRACE",
	slog.LevelDebug:   "DEBUG",
	slog.LevelInfo:    "INFO",
	slog.LevelWarn:    "WARNING",
	slog.LevelError:   "ERROR",
}

// Format selects the on-disk/stderr encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Config controls how Init builds the process-wide logger.
type Config struct {
	Format   Format
	Level    string // "trace", "debug", "info", "warning", "error"
	FilePath string // empty means stderr
	MaxSizeMB int
	MaxBackups int
}

type loggerFactory struct{}

var defaultLoggerFactory = loggerFactory{}

// createJsonOrTextHandler builds a slog.Handler writing to w at the given
// level, optionally prefixing every message (used by tests to scope output).
func (loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string, format Format) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.TimeKey:
			a.Key = "timestamp"
			if format == FormatJSON {
				t := a.Value.Time()
				return slog.Attr{Key: "timestamp", Value: slog.GroupValue(
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())),
				)}
			}
			return slog.String("time", a.Value.Time().Format("2006/01/02 15:04:05.000000"))
		case slog.LevelKey:
			a.Key = "severity"
			lvl, _ := a.Value.Any().(slog.Level)
			name, ok := levelNames[lvl]
			if !ok {
				name = lvl.String()
			}
			return slog.String("severity", name)
		case slog.MessageKey:
			a.Key = "message"
			if prefix != "" {
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replace}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, levelVarFor("info"), "", FormatText))

func levelVarFor(level string) *slog.LevelVar {
	v := new(slog.LevelVar)
	setLoggingLevel(level, v)
	return v
}

func setLoggingLevel(level string, v *slog.LevelVar) {
	switch strings.ToLower(level) {
	case "trace":
		v.Set(LevelTrace)
	case "debug":
		v.Set(slog.LevelDebug)
	case "info":
		v.Set(slog.LevelInfo)
	case "warning", "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}

// Init reconfigures the process-wide default logger. Call once at startup
// from cmd/.
func Init(cfg Config) error {
	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			Compress:   true,
		}
	}
	v := levelVarFor(cfg.Level)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, v, "", cfg.Format))
	return nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

// Logger is a per-component child logger, e.g. logger.New("sched"),
// logger.New("vfs"), mirroring the teacher's one-logger-per-concern style
// (gcsproxy/logger.go's getLogger()).
type Logger struct {
	component string
}

// New returns a logger scoped to component; every record it emits carries a
// component=NAME attribute.
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	defaultLogger.Log(ctx, level, msg, append([]any{"component", l.component}, args...)...)
}

func (l *Logger) Trace(msg string, args ...any) { l.log(context.Background(), LevelTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log(context.Background(), slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(context.Background(), slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(context.Background(), slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(context.Background(), slog.LevelError, msg, args...) }

// Errorf is a convenience for logging a formatted error message alongside an
// error value, common at subsystem boundaries.
func (l *Logger) Errorf(err error, format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...), "err", err)
}
