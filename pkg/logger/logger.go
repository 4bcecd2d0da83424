// Package logger provides structured logging with build-target awareness
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const prefix = "📦"

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)
	// WithTarget scopes the logger to a build target (legacy, modern)
	WithTarget(target string) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// WithError creates an error field
func WithError(err error) Field {
	return Field{Key: "error", Value: err}
}

// TargetLogger implements Logger on top of logrus
type TargetLogger struct {
	logger     *logrus.Logger
	targetName string
}

// CustomFormatter prints one coloured line per entry with the target as prefix
type CustomFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

// Format implements logrus.Formatter
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelColor *color.Color
	var levelText string

	switch entry.Level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		levelColor = color.New(color.FgRed, color.Bold)
		levelText = "ERROR"
	case logrus.WarnLevel:
		levelColor = color.New(color.FgYellow, color.Bold)
		levelText = "WARN"
	case logrus.DebugLevel, logrus.TraceLevel:
		levelColor = color.New(color.FgWhite, color.Faint)
		levelText = "DEBUG"
	default:
		levelColor = color.New(color.FgCyan)
		levelText = "INFO"
	}

	targetPrefix := ""
	keys := make([]string, 0, len(entry.Data))
	for k, v := range entry.Data {
		if k == "target" {
			targetPrefix = fmt.Sprintf("[%v] ", v)
			if !f.DisableColors {
				targetPrefix = fmt.Sprintf("[%s] ", color.New(color.FgBlue).Sprint(v))
			}
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if !f.DisableColors {
		levelText = levelColor.Sprint(levelText)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s: %s%s", prefix, entry.Time.Format(f.TimestampFormat), levelText, targetPrefix, entry.Message)

	if len(keys) > 0 {
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, entry.Data[k]))
		}
		fields := " {" + strings.Join(pairs, ", ") + "}"
		if !f.DisableColors {
			fields = color.New(color.FgWhite, color.Faint).Sprint(fields)
		}
		b.WriteString(fields)
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// CreateLogger creates a console logger, also appending to logFile when set
func CreateLogger(logFile string, logLevel string) Logger {
	var out io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			out = io.MultiWriter(os.Stderr, file)
		}
	}
	return newLogger(logLevel, out, false)
}

// CreateLoggerWithOutput creates a logger with custom output (for testing)
func CreateLoggerWithOutput(logLevel string, output io.Writer) Logger {
	return newLogger(logLevel, output, true)
}

// NewNopLogger discards everything
func NewNopLogger() Logger {
	return newLogger("error", io.Discard, true)
}

func newLogger(logLevel string, out io.Writer, disableColors bool) *TargetLogger {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   disableColors,
	})
	log.SetOutput(out)

	return &TargetLogger{logger: log}
}

// WithTarget returns a logger that tags every line with target
func (l *TargetLogger) WithTarget(target string) Logger {
	return &TargetLogger{
		logger:     l.logger,
		targetName: target,
	}
}

func (l *TargetLogger) entry(fields []Field) *logrus.Entry {
	data := make(logrus.Fields, len(fields)+1)
	if l.targetName != "" {
		data["target"] = l.targetName
	}
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return l.logger.WithFields(data)
}

// Info logs an info message
func (l *TargetLogger) Info(message string, fields ...Field) {
	l.entry(fields).Info(message)
}

// Error logs an error message
func (l *TargetLogger) Error(message string, fields ...Field) {
	l.entry(fields).Error(message)
}

// Warn logs a warning message
func (l *TargetLogger) Warn(message string, fields ...Field) {
	l.entry(fields).Warn(message)
}

// Debug logs a debug message
func (l *TargetLogger) Debug(message string, fields ...Field) {
	l.entry(fields).Debug(message)
}

// Success logs at info level with a check mark
func (l *TargetLogger) Success(message string, fields ...Field) {
	l.entry(fields).Info("✅ " + message)
}

// ConsoleLogger prints plain CLI output
type ConsoleLogger struct {
	out io.Writer
	err io.Writer
}

// NewConsoleLogger creates a console logger for CLI output
func NewConsoleLogger(out, err io.Writer) *ConsoleLogger {
	return &ConsoleLogger{out: out, err: err}
}

// Info prints info message
func (c *ConsoleLogger) Info(message string) {
	fmt.Fprintf(c.out, "%s %s %s\n", prefix, color.CyanString("[dualpack]"), message)
}

// Error prints error message
func (c *ConsoleLogger) Error(message string) {
	fmt.Fprintf(c.err, "%s %s %s\n", prefix, color.RedString("[dualpack]"), message)
}

// Warn prints warning message
func (c *ConsoleLogger) Warn(message string) {
	fmt.Fprintf(c.out, "%s %s %s\n", prefix, color.YellowString("[dualpack]"), message)
}

// Success prints success message
func (c *ConsoleLogger) Success(message string) {
	fmt.Fprintf(c.out, "%s %s ✅ %s\n", prefix, color.GreenString("[dualpack]"), message)
}
