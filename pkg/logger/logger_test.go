package logger_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	pcontext "github.com/dualpack/dualpack/pkg/context"
	"github.com/dualpack/dualpack/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantLines int
	}{
		{"debug", 4},
		{"info", 3},
		{"warn", 2},
		{"error", 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.CreateLoggerWithOutput(tt.level, &buf)

			log.Debug("debug line")
			log.Info("info line")
			log.Warn("warn line")
			log.Error("error line")

			lines := strings.Count(buf.String(), "\n")
			if lines != tt.wantLines {
				t.Errorf("level %s wrote %d lines, want %d:\n%s", tt.level, lines, tt.wantLines, buf.String())
			}
		})
	}
}

func TestLogger_WithTarget(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("info", &buf)

	base.WithTarget("legacy").Info("composing")
	base.WithTarget("modern").Info("composing")
	base.Info("untagged")

	output := buf.String()
	if !strings.Contains(output, "INFO: [legacy] composing") {
		t.Errorf("expected legacy prefix, got:\n%s", output)
	}
	if !strings.Contains(output, "INFO: [modern] composing") {
		t.Errorf("expected modern prefix, got:\n%s", output)
	}
	if !strings.Contains(output, "INFO: untagged") {
		t.Errorf("expected untagged line without prefix, got:\n%s", output)
	}
}

func TestLogger_FieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Info("plan ready",
		logger.WithField("specs", 2),
		logger.WithField("env", "production"),
		logger.WithError(errors.New("boom")),
	)

	if !strings.Contains(buf.String(), "{env=production, error=boom, specs=2}") {
		t.Errorf("unexpected field rendering:\n%s", buf.String())
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Success("build completed")

	if !strings.Contains(buf.String(), "✅ build completed") {
		t.Error("expected success message in log output")
	}
}

func TestNopLogger(t *testing.T) {
	log := logger.NewNopLogger()
	log.WithTarget("legacy").Error("dropped")
}

func TestConsoleLogger(t *testing.T) {
	var out, errOut bytes.Buffer
	c := logger.NewConsoleLogger(&out, &errOut)

	c.Info("hello")
	c.Error("failed")

	if !strings.Contains(out.String(), "hello") {
		t.Error("expected info on stdout writer")
	}
	if !strings.Contains(errOut.String(), "failed") {
		t.Error("expected error on stderr writer")
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("info", &buf)

	ctx := pcontext.WithRunID(context.Background(), "run_1")
	ctx = pcontext.WithCommand(ctx, "build")
	log := logger.WithContext(ctx, base)

	log.WithTarget("modern").Info("composed", logger.WithField("rules", 4))

	output := buf.String()
	if !strings.Contains(output, "[modern] composed {command=build, rules=4, run=run_1}") {
		t.Errorf("expected run fields, got:\n%s", output)
	}
}

func TestWithContext_NoFields(t *testing.T) {
	base := logger.NewNopLogger()
	if logger.WithContext(context.Background(), base) != base {
		t.Error("expected the base logger without run fields")
	}
}
