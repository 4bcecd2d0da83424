package logger

import (
	"context"

	pcontext "github.com/dualpack/dualpack/pkg/context"
)

// ContextFields returns the run fields stored on ctx
func ContextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field
	if id := pcontext.GetRunID(ctx); id != "" {
		fields = append(fields, WithField("run", id))
	}
	if cmd := pcontext.GetCommand(ctx); cmd != "" {
		fields = append(fields, WithField("command", cmd))
	}
	if env := pcontext.GetEnvironment(ctx); env != "" {
		fields = append(fields, WithField("env", env))
	}
	return fields
}

// WithContext returns a logger that adds the run fields of ctx to every line
func WithContext(ctx context.Context, logger Logger) Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return &contextualLogger{fields: fields, logger: logger}
}

type contextualLogger struct {
	fields []Field
	logger Logger
}

func (cl *contextualLogger) with(fields []Field) []Field {
	all := make([]Field, 0, len(cl.fields)+len(fields))
	all = append(all, cl.fields...)
	return append(all, fields...)
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	cl.logger.Info(message, cl.with(fields)...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	cl.logger.Error(message, cl.with(fields)...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	cl.logger.Warn(message, cl.with(fields)...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	cl.logger.Debug(message, cl.with(fields)...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, cl.with(fields)...)
}

func (cl *contextualLogger) WithTarget(target string) Logger {
	return &contextualLogger{fields: cl.fields, logger: cl.logger.WithTarget(target)}
}
