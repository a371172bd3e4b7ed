package metrics

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents a logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent // Disables all logging
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level string.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "SILENT", "OFF", "NONE":
		return LevelSilent
	default:
		return LevelInfo
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		// Above anything the Logger emits.
		return zapcore.FatalLevel + 1
	}
}

// Logger provides structured logging with levels on top of zap.
//
// Text output keeps the key=value field layout; JSON output emits one object
// per entry with time, level, msg and logger keys.
type Logger struct {
	z      *zap.Logger
	level  zap.AtomicLevel
	format Format
	fields Fields
	name   string

	out io.Writer
}

// Fields represents structured log fields.
type Fields map[string]interface{}

// Format specifies the log output format.
type Format int

const (
	FormatText Format = iota // Human-readable text format
	FormatJSON               // JSON format for log aggregation
)

// ParseFormat parses "json" or "text".
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

// LoggerOption configures a logger.
type LoggerOption func(*loggerConfig)

type loggerConfig struct {
	out    io.Writer
	level  Level
	format Format
	fields Fields
	name   string
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(c *loggerConfig) {
		c.out = w
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(c *loggerConfig) {
		c.level = level
	}
}

// WithFormat sets the output format.
func WithFormat(format Format) LoggerOption {
	return func(c *loggerConfig) {
		c.format = format
	}
}

// WithFields sets default fields for all log entries.
func WithFields(fields Fields) LoggerOption {
	return func(c *loggerConfig) {
		c.fields = fields
	}
}

// WithName sets the logger name.
func WithName(name string) LoggerOption {
	return func(c *loggerConfig) {
		c.name = name
	}
}

// NewLogger creates a new logger with the given options.
func NewLogger(opts ...LoggerOption) *Logger {
	cfg := loggerConfig{
		out:    os.Stdout,
		level:  LevelInfo,
		format: FormatText,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	level := zap.NewAtomicLevelAt(cfg.level.zapLevel())
	core := zapcore.NewCore(newEncoder(cfg.format), zapcore.AddSync(&lockedWriter{w: cfg.out}), level)

	z := zap.New(core)
	if cfg.name != "" {
		z = z.Named(cfg.name)
	}

	fields := make(Fields, len(cfg.fields))
	for k, v := range cfg.fields {
		fields[k] = v
	}

	return &Logger{
		z:      z,
		level:  level,
		format: cfg.format,
		fields: fields,
		name:   cfg.name,
		out:    cfg.out,
	}
}

func newEncoder(format Format) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeLevel,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	if format == FormatJSON {
		ec.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
		ec.EncodeName = zapcore.FullNameEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + name + "]")
	}
	ec.ConsoleSeparator = " "
	return zapcore.NewConsoleEncoder(ec)
}

// encodeLevel keeps the level names aligned with Level.String.
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString("DEBUG")
	case zapcore.InfoLevel:
		enc.AppendString("INFO")
	case zapcore.WarnLevel:
		enc.AppendString("WARN")
	default:
		enc.AppendString("ERROR")
	}
}

// lockedWriter serializes writes from loggers sharing one output.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// With returns a new logger with additional fields.
func (l *Logger) With(fields Fields) *Logger {
	newFields := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &Logger{
		z:      l.z,
		level:  l.level,
		format: l.format,
		fields: newFields,
		name:   l.name,
		out:    l.out,
	}
}

// Named returns a new logger with the given name.
func (l *Logger) Named(name string) *Logger {
	newName := name
	if l.name != "" {
		newName = l.name + "." + name
	}
	return &Logger{
		z:      l.z.Named(name),
		level:  l.level,
		format: l.format,
		fields: l.fields,
		name:   newName,
		out:    l.out,
	}
}

// SetLevel changes the logging level. Loggers derived with With or Named
// share the level.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

// Zap returns the underlying zap logger for libraries that take one.
func (l *Logger) Zap() *zap.Logger {
	return l.z.With(l.zapFields(nil)...)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.log(zapcore.DebugLevel, msg, fields...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...Fields) {
	l.log(zapcore.InfoLevel, msg, fields...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.log(zapcore.WarnLevel, msg, fields...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...Fields) {
	l.log(zapcore.ErrorLevel, msg, fields...)
}

func (l *Logger) log(level zapcore.Level, msg string, extraFields ...Fields) {
	ce := l.z.Check(level, msg)
	if ce == nil {
		return
	}

	if l.format == FormatText {
		merged := l.merge(extraFields)
		if len(merged) > 0 {
			ce.Message = msg + " " + formatFields(merged)
		}
		ce.Write()
		return
	}

	ce.Write(l.zapFields(extraFields)...)
}

func (l *Logger) merge(extra []Fields) Fields {
	all := make(Fields, len(l.fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for _, f := range extra {
		for k, v := range f {
			all[k] = v
		}
	}
	return all
}

func (l *Logger) zapFields(extra []Fields) []zap.Field {
	all := l.merge(extra)
	keys := sortedKeys(all)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := all[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, all[k]))
	}
	return out
}

func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatFields formats fields as key=value pairs, sorted by key.
func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}

	keys := sortedKeys(fields)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}

	return strings.Join(parts, " ")
}

// --- Global Logger ---

var (
	globalLogger   *Logger
	globalLoggerMu sync.RWMutex
)

func init() {
	globalLogger = NewLogger()
}

// SetLogger sets the global logger.
func SetLogger(l *Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = l
}

// GetLogger returns the global logger.
func GetLogger() *Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// Debug logs at debug level using the global logger.
func Debug(msg string, fields ...Fields) {
	GetLogger().Debug(msg, fields...)
}

// Info logs at info level using the global logger.
func Info(msg string, fields ...Fields) {
	GetLogger().Info(msg, fields...)
}

// Warn logs at warn level using the global logger.
func Warn(msg string, fields ...Fields) {
	GetLogger().Warn(msg, fields...)
}

// Error logs at error level using the global logger.
func Error(msg string, fields ...Fields) {
	GetLogger().Error(msg, fields...)
}

// --- Convenience Functions ---

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	return NewLogger(WithOutput(io.Discard), WithLevel(LevelSilent))
}

// TestLogger returns a logger suitable for testing (debug level, text format).
func TestLogger(w io.Writer) *Logger {
	return NewLogger(
		WithOutput(w),
		WithLevel(LevelDebug),
		WithFormat(FormatText),
	)
}

// ProductionLogger returns a logger suitable for production (info level, JSON format).
func ProductionLogger(w io.Writer) *Logger {
	return NewLogger(
		WithOutput(w),
		WithLevel(LevelInfo),
		WithFormat(FormatJSON),
	)
}
