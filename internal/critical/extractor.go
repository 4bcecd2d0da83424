package critical

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dualpack/dualpack/pkg/types"
)

// ErrNoExtractorCommand is returned when no extraction command is configured
var ErrNoExtractorCommand = errors.New("no critical extraction command configured")

// Extractor runs one critical style extraction
type Extractor interface {
	Extract(ctx context.Context, job types.CriticalResourceJob) error
}

// CommandExtractor runs an external command per job through sh -c. The
// command string may reference {src}, {dest}, {base}, {width}, {height}
// and {minify}; the whole job is also passed as JSON in
// DUALPACK_CRITICAL_JOB.
type CommandExtractor struct {
	Command string
	Dir     string
	Env     map[string]string
}

// NewCommandExtractor creates an extractor running command in dir
func NewCommandExtractor(command, dir string, env map[string]string) *CommandExtractor {
	return &CommandExtractor{Command: command, Dir: dir, Env: env}
}

// Extract implements Extractor
func (e *CommandExtractor) Extract(ctx context.Context, job types.CriticalResourceJob) error {
	if strings.TrimSpace(e.Command) == "" {
		return ErrNoExtractorCommand
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", ExpandCommand(e.Command, job))
	cmd.Dir = e.Dir
	cmd.Env = os.Environ()
	for k, v := range e.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env, "DUALPACK_CRITICAL_JOB="+string(payload))

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(output.String())
		if msg == "" {
			return fmt.Errorf("extraction command failed: %w", err)
		}
		return fmt.Errorf("extraction command failed: %w: %s", err, msg)
	}
	return nil
}

// ExpandCommand substitutes job fields into a command template. Path and
// URL values are inserted as single-quoted shell words, so templates must
// not quote the placeholders themselves.
func ExpandCommand(command string, job types.CriticalResourceJob) string {
	return strings.NewReplacer(
		"{src}", shellQuote(job.Source),
		"{dest}", shellQuote(job.Destination),
		"{base}", shellQuote(job.Base),
		"{width}", strconv.Itoa(job.Width),
		"{height}", strconv.Itoa(job.Height),
		"{minify}", strconv.FormatBool(job.Minify),
	).Replace(command)
}

// shellQuote returns s as one single-quoted sh word
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
