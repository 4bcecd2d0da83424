// Package executor hands composed plans to the external build tool
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dualpack/dualpack/internal/compose"
	"github.com/dualpack/dualpack/internal/entries"
	"github.com/dualpack/dualpack/internal/metrics"
	"github.com/dualpack/dualpack/pkg/logger"
)

// Environment variables set for the build command
const (
	PlanEnv        = "DUALPACK_PLAN"
	EnvironmentEnv = "DUALPACK_ENV"
)

// WorkDir holds plans and logs, relative to the project root
const WorkDir = ".dualpack"

// ErrNoCommand is returned when no build command is configured
var ErrNoCommand = errors.New("no build command configured")

// Executor runs the external build for a plan
type Executor interface {
	Execute(ctx context.Context, plan *compose.Plan) error
}

// CommandExecutor writes the plan to disk and runs a shell command
// that reads it from DUALPACK_PLAN.
type CommandExecutor struct {
	Command     string
	ProjectRoot string
	Env         map[string]string

	log      logger.Logger
	recorder metrics.Recorder

	mu           sync.RWMutex
	lastDuration time.Duration
	total        int
	succeeded    int
}

// Option configures a CommandExecutor
type Option func(*CommandExecutor)

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(e *CommandExecutor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r metrics.Recorder) Option {
	return func(e *CommandExecutor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// NewCommandExecutor creates an executor running command in projectRoot
func NewCommandExecutor(command, projectRoot string, env map[string]string, opts ...Option) *CommandExecutor {
	e := &CommandExecutor{
		Command:     command,
		ProjectRoot: projectRoot,
		Env:         env,
		log:         logger.NewNopLogger(),
		recorder:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute checks the entry sources, writes the plan and runs the command.
// Command output is appended to .dualpack/logs/<environment>.log.
func (e *CommandExecutor) Execute(ctx context.Context, plan *compose.Plan) (err error) {
	if e.Command == "" {
		return ErrNoCommand
	}
	if plan == nil {
		return fmt.Errorf("nil plan")
	}

	start := time.Now()
	env := string(plan.Environment)
	defer func() {
		d := time.Since(start)
		e.mu.Lock()
		e.lastDuration = d
		e.total++
		if err == nil {
			e.succeeded++
		}
		e.mu.Unlock()
		e.recorder.ObserveExecute(env, d, metrics.OutcomeOf(err, ctx.Err() != nil))
	}()

	if err := entries.CheckSources(planEntries(plan)); err != nil {
		return err
	}

	planPath, err := WritePlan(e.ProjectRoot, plan)
	if err != nil {
		return err
	}

	logFile, err := e.prepareLogFile(env)
	if err != nil {
		e.log.Warn("Failed to create log file", logger.WithError(err))
	}
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	logToFile(logFile, fmt.Sprintf("\n=== Build %s started at %s ===\n", plan.ID, start.Format("2006-01-02 15:04:05")))
	logToFile(logFile, fmt.Sprintf("Executing: %s\n", e.Command))

	cmd := createCommand(ctx, e.Command)
	cmd.Dir = e.ProjectRoot
	cmd.Env = os.Environ()
	for k, v := range e.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env, PlanEnv+"="+planPath, EnvironmentEnv+"="+env)

	var output bytes.Buffer
	var w io.Writer = &output
	if logFile != nil {
		w = io.MultiWriter(&output, logFile)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	e.log.Info("Running build command",
		logger.WithField("environment", env),
		logger.WithField("command", e.Command))

	if err := cmd.Run(); err != nil {
		duration := time.Since(start)
		logToFile(logFile, fmt.Sprintf("\n=== Build FAILED after %s ===\nError: %v\n", duration, err))
		e.log.Error("Build failed", logger.WithError(err), logger.WithField("output", output.String()))
		return fmt.Errorf("build failed: %w\n%s", err, output.Bytes())
	}

	duration := time.Since(start)
	logToFile(logFile, fmt.Sprintf("\n=== Build SUCCEEDED after %s ===\n", duration))
	e.log.Success(fmt.Sprintf("Build completed in %s", duration.Round(time.Millisecond)))
	if output.Len() > 0 {
		e.log.Debug("Build output", logger.WithField("output", output.String()))
	}
	return nil
}

// LastDuration returns the duration of the most recent execution
func (e *CommandExecutor) LastDuration() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastDuration
}

// SuccessRate returns the share of successful executions, 1 before the first
func (e *CommandExecutor) SuccessRate() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.total == 0 {
		return 1.0
	}
	return float64(e.succeeded) / float64(e.total)
}

// PlanPath returns where the plan of an environment is written
func PlanPath(projectRoot, env string) string {
	return filepath.Join(projectRoot, WorkDir, "plans", env+".json")
}

// WritePlan writes plan as indented JSON and returns the file path
func WritePlan(projectRoot string, plan *compose.Plan) (string, error) {
	path := PlanPath(projectRoot, string(plan.Environment))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create plan directory: %w", err)
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write plan: %w", err)
	}
	return path, nil
}

// planEntries collects the entry points of every spec of the plan
func planEntries(plan *compose.Plan) map[string]string {
	resolved := make(map[string]string)
	for _, spec := range plan.Specs {
		for name, path := range spec.Entry {
			resolved[name] = path
		}
	}
	return resolved
}

// createCommand runs compound commands through the shell and simple
// ones directly.
func createCommand(ctx context.Context, command string) *exec.Cmd {
	if strings.ContainsAny(command, "&|;<>$`\"'") {
		return exec.CommandContext(ctx, "sh", "-c", command)
	}
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return exec.CommandContext(ctx, "sh", "-c", command)
	}
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}

func (e *CommandExecutor) prepareLogFile(env string) (*os.File, error) {
	dir := filepath.Join(e.ProjectRoot, WorkDir, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, env+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func logToFile(f *os.File, message string) {
	if f != nil {
		f.WriteString(message)
	}
}
