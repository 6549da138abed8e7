// Structured logging for HelixScreen
//
// Provides a flexible logging system with support for:
// - Log levels (DEBUG, INFO, WARN, ERROR)
// - Structured fields (key-value pairs)
// - Multiple output formats (text, JSON)
// - ANSI colors for terminal output
// - Log file rotation
// - Per-component loggers with prefixes
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// DEBUG level for detailed debugging information
	DEBUG LogLevel = iota

	// INFO level for general informational messages
	INFO

	// WARN level for warning messages
	WARN

	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a LogLevel
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// OutputFormat specifies the output format for log messages
type OutputFormat int

const (
	// FormatText outputs human-readable text format
	FormatText OutputFormat = iota
	// FormatJSON outputs machine-readable JSON format
	FormatJSON
)

// Fields is a map of structured logging fields
type Fields map[string]interface{}

// Logger is the main logging interface
type Logger struct {
	mu         sync.Mutex
	prefix     string
	writer     io.Writer
	level      LogLevel
	timeFormat string
	colorize   bool
	outFormat  OutputFormat
	fields     Fields // Persistent fields attached to this logger
}

var (
	defaultLogger     *Logger
	defaultLoggerOnce sync.Once

	globalMu     sync.Mutex
	globalLevel  = INFO
	globalWriter io.Writer = os.Stderr

	// ANSI color codes for terminal output
	ansiColors = map[LogLevel]string{
		DEBUG: "\x1b[36m", // Cyan
		INFO:  "\x1b[32m", // Green
		WARN:  "\x1b[33m", // Yellow
		ERROR: "\x1b[31m", // Red
	}
	ansiReset = "\x1b[0m"
)

// SetGlobalLevel sets the level inherited by loggers created afterwards.
func SetGlobalLevel(level LogLevel) {
	globalMu.Lock()
	globalLevel = level
	globalMu.Unlock()
	Default().SetLevel(level)
}

// SetGlobalWriter sets the writer inherited by loggers created afterwards.
func SetGlobalWriter(w io.Writer) {
	globalMu.Lock()
	globalWriter = w
	globalMu.Unlock()
	Default().SetWriter(w)
}

// New creates a new logger with the given prefix
func New(prefix string) *Logger {
	globalMu.Lock()
	level, writer := globalLevel, globalWriter
	globalMu.Unlock()
	return &Logger{
		prefix:     prefix,
		writer:     writer,
		level:      level,
		timeFormat: "2006-01-02 15:04:05.000",
		colorize:   os.Getenv("NO_COLOR") == "",
		outFormat:  FormatText,
		fields:     make(Fields),
	}
}

// Default returns the process-wide default logger.
func Default() *Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = New("")
	})
	return defaultLogger
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetWriter sets the output writer (e.g., for testing)
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

// SetFormat sets the output format
func (l *Logger) SetFormat(f OutputFormat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outFormat = f
}

// SetColorize enables or disables ANSI colors
func (l *Logger) SetColorize(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colorize = on
}

// WithFields returns a child logger with additional persistent fields
func (l *Logger) WithFields(fields Fields) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	child := &Logger{
		prefix:     l.prefix,
		writer:     l.writer,
		level:      l.level,
		timeFormat: l.timeFormat,
		colorize:   l.colorize,
		outFormat:  l.outFormat,
		fields:     make(Fields, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

// log writes a log entry if the level passes the threshold.
func (l *Logger) log(level LogLevel, fields Fields, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	now := time.Now()

	if l.outFormat == FormatJSON {
		l.writeJSON(now, level, msg, fields)
		return
	}
	l.writeText(now, level, msg, fields)
}

func (l *Logger) writeText(now time.Time, level LogLevel, msg string, fields Fields) {
	var sb strings.Builder
	sb.WriteString(now.Format(l.timeFormat))
	sb.WriteByte(' ')

	if l.colorize {
		sb.WriteString(ansiColors[level])
	}
	sb.WriteString(fmt.Sprintf("%-5s", level.String()))
	if l.colorize {
		sb.WriteString(ansiReset)
	}

	if l.prefix != "" {
		sb.WriteString(" [")
		sb.WriteString(l.prefix)
		sb.WriteByte(']')
	}
	sb.WriteByte(' ')
	sb.WriteString(msg)

	// Merged fields, sorted for stable output
	merged := l.mergeFields(fields)
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf(" %s=%v", k, merged[k]))
		}
	}
	sb.WriteByte('\n')

	io.WriteString(l.writer, sb.String())
}

func (l *Logger) writeJSON(now time.Time, level LogLevel, msg string, fields Fields) {
	entry := map[string]interface{}{
		"time":  now.Format(time.RFC3339Nano),
		"level": level.String(),
		"msg":   msg,
	}
	if l.prefix != "" {
		entry["component"] = l.prefix
	}
	for k, v := range l.mergeFields(fields) {
		entry[k] = v
	}

	data, err := json.Marshal(entry)
	if err != nil {
		// Fall back to text on marshal failure
		fmt.Fprintf(l.writer, "%s %s %s (json marshal failed: %v)\n",
			now.Format(l.timeFormat), level.String(), msg, err)
		return
	}
	l.writer.Write(append(data, '\n'))
}

func (l *Logger) mergeFields(fields Fields) Fields {
	if len(l.fields) == 0 {
		return fields
	}
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

// Debug logs at DEBUG level
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, nil, format, args...)
}

// Info logs at INFO level
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, nil, format, args...)
}

// Warn logs at WARN level
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, nil, format, args...)
}

// Error logs at ERROR level
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, nil, format, args...)
}

// DebugFields logs at DEBUG level with structured fields
func (l *Logger) DebugFields(msg string, fields Fields) {
	l.log(DEBUG, fields, "%s", msg)
}

// InfoFields logs at INFO level with structured fields
func (l *Logger) InfoFields(msg string, fields Fields) {
	l.log(INFO, fields, "%s", msg)
}

// WarnFields logs at WARN level with structured fields
func (l *Logger) WarnFields(msg string, fields Fields) {
	l.log(WARN, fields, "%s", msg)
}

// ErrorFields logs at ERROR level with structured fields
func (l *Logger) ErrorFields(msg string, fields Fields) {
	l.log(ERROR, fields, "%s", msg)
}
