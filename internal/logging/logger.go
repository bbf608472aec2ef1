package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides leveled CLI logging with redaction support
type Logger struct {
	debug   bool
	noColor bool
	sugar   *zap.SugaredLogger
}

// New creates a new logger instance writing to stderr
func New(debug, noColor bool) *Logger {
	return NewWithWriter(os.Stderr, debug, noColor)
}

// NewWithWriter creates a logger that writes to w
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      symbolEncoder(noColor),
		ConsoleSeparator: " ",
		LineEnding:       zapcore.DefaultLineEnding,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)

	return &Logger{
		debug:   debug,
		noColor: noColor,
		sugar:   zap.New(core).Sugar(),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{noColor: true, sugar: zap.NewNop().Sugar()}
}

// symbolEncoder renders levels as the short CLI markers used across vaultenv
func symbolEncoder(noColor bool) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		var symbol, color string
		switch l {
		case zapcore.DebugLevel:
			symbol, color = "[DEBUG]", "36"
		case zapcore.InfoLevel:
			symbol, color = "✓", "32"
		case zapcore.WarnLevel:
			symbol, color = "⚠", "33"
		default:
			symbol, color = "✗", "31"
		}
		if noColor {
			enc.AppendString(symbol)
			return
		}
		enc.AppendString("\033[" + color + "m" + symbol + "\033[0m")
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// IsDebug reports whether debug output is enabled
func (l *Logger) IsDebug() bool {
	return l.debug
}

// Sync flushes any buffered output
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
