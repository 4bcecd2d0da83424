// Package context carries per-invocation run information through a
// context.Context so log lines of one dualpack run can be correlated.
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ctxKey keeps the keys private to this package; every key is a distinct value.
type ctxKey int

const (
	runIDKey ctxKey = iota
	commandKey
	environmentKey
	startTimeKey
)

// WithRunID stores a run ID, generating one when runID is empty
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID returns the run ID, or "" when none was stored
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithCommand stores the name of the command being run
func WithCommand(parent context.Context, command string) context.Context {
	return context.WithValue(parent, commandKey, command)
}

// GetCommand returns the command name, or ""
func GetCommand(ctx context.Context) string {
	cmd, _ := ctx.Value(commandKey).(string)
	return cmd
}

// WithEnvironment stores the build environment of the run
func WithEnvironment(parent context.Context, env string) context.Context {
	return context.WithValue(parent, environmentKey, env)
}

// GetEnvironment returns the build environment, or ""
func GetEnvironment(ctx context.Context) string {
	env, _ := ctx.Value(environmentKey).(string)
	return env
}

// WithStartTime stores when the run started
func WithStartTime(parent context.Context, start time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, start)
}

// Elapsed returns the time since the stored start, or 0 without one
func Elapsed(ctx context.Context) time.Duration {
	start, ok := ctx.Value(startTimeKey).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// GenerateRunID creates a new unique run ID
func GenerateRunID() string {
	return "run_" + uuid.NewString()
}

// NewRun returns a context describing one invocation of command in env.
// An existing run ID on parent is kept.
func NewRun(parent context.Context, command, env string) context.Context {
	ctx := parent
	if GetRunID(ctx) == "" {
		ctx = WithRunID(ctx, "")
	}
	ctx = WithCommand(ctx, command)
	ctx = WithEnvironment(ctx, env)
	return WithStartTime(ctx, time.Now())
}
