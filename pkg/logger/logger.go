package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string // debug, info, warn, error, fatal, panic
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string // time format for log messages
}

type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	// "console" is human-readable, anything else stays JSON
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}

	// skip 4 frames: zerolog internals plus Info/log between the call
	// site and the event
	zl := zerolog.New(out).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()

	return &Logger{zl: zl}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		file, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		return file, nil
	}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.log(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) { l.log(l.zl.Warn(), msg, fields) }

func (l *Logger) Error(msg string, fields ...Field) {
	l.log(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) log(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.emit(event)
	}
	event.Msg(msg)
}

// collect funnels a log line into the aggregator when one is attached.
func (l *Logger) collect(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}

	// two frames up: collect -> Error -> call site
	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", trimModulePath(file), line)
	}

	kv := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		kv[f.key] = f.value()
	}

	l.collector.AddLog(level, msg, kv, caller)
}

// trimModulePath cuts the build-host prefix so callers read repo-relative.
func trimModulePath(file string) string {
	if i := strings.LastIndex(file, "FinFuse"); i >= 0 {
		return file[i+len("FinFuse"):]
	}
	return file
}

// AddCollector turns on error-log aggregation; repeated errors are deduped
// and flushed in batches through the configured publisher.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
	}
}

// Field is a typed key/value pair attached to a log line. Build one with the
// constructors below; the zero value logs nothing useful.
type Field struct {
	key  string
	kind fieldKind
	str  string
	i64  int64
	f64  float64
	b    bool
	err  error
	any  interface{}
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindInt64
	kindFloat64
	kindBool
	kindError
	kindAny
)

func String(key, value string) Field {
	return Field{key: key, kind: kindString, str: value}
}

func Int(key string, value int) Field {
	return Field{key: key, kind: kindInt, i64: int64(value)}
}

func Int64(key string, value int64) Field {
	return Field{key: key, kind: kindInt64, i64: value}
}

func Float64(key string, value float64) Field {
	return Field{key: key, kind: kindFloat64, f64: value}
}

func Bool(key string, value bool) Field {
	return Field{key: key, kind: kindBool, b: value}
}

// Error always logs under the "error" key.
func Error(err error) Field {
	return Field{key: "error", kind: kindError, err: err}
}

func Any(key string, value interface{}) Field {
	return Field{key: key, kind: kindAny, any: value}
}

// Duration logs whole milliseconds so dashboards stay unit-free.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}

func (f Field) emit(event *zerolog.Event) {
	switch f.kind {
	case kindString:
		event.Str(f.key, f.str)
	case kindInt:
		event.Int(f.key, int(f.i64))
	case kindInt64:
		event.Int64(f.key, f.i64)
	case kindFloat64:
		event.Float64(f.key, f.f64)
	case kindBool:
		event.Bool(f.key, f.b)
	case kindError:
		event.Err(f.err)
	case kindAny:
		event.Interface(f.key, f.any)
	}
}

// value renders the field for collector aggregation.
func (f Field) value() interface{} {
	switch f.kind {
	case kindString:
		return f.str
	case kindInt:
		return int(f.i64)
	case kindInt64:
		return f.i64
	case kindFloat64:
		return f.f64
	case kindBool:
		return f.b
	case kindError:
		if f.err == nil {
			return nil
		}
		return f.err.Error()
	default:
		return f.any
	}
}
