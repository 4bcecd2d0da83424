package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dualpack/dualpack/internal/compose"
	"github.com/dualpack/dualpack/internal/entries"
	"github.com/dualpack/dualpack/internal/executor"
	"github.com/dualpack/dualpack/pkg/types"
)

func testPlan(t *testing.T, root string, createSource bool) *compose.Plan {
	t.Helper()
	src := filepath.Join(root, "src", "js", "app.ts")
	if createSource {
		if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(src, []byte("export {}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return &compose.Plan{
		ID:          "plan-1",
		Environment: types.EnvironmentProduction,
		Specs: []types.BuildSpec{
			{Target: types.TargetLegacy, Environment: types.EnvironmentProduction, Entry: map[string]string{"app": src}},
			{Target: types.TargetModern, Environment: types.EnvironmentProduction, Entry: map[string]string{"app": src}},
		},
	}
}

func TestExecute_PassesPlan(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(t, root, true)

	exec := executor.NewCommandExecutor(`cat "$DUALPACK_PLAN" > plan-copy.json && echo "$DUALPACK_ENV $EXTRA" > env.txt`, root,
		map[string]string{"EXTRA": "set"})
	if err := exec.Execute(context.Background(), plan); err != nil {
		t.Fatalf("execute: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "plan-copy.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded compose.Plan
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("plan is not valid JSON: %v", err)
	}
	if decoded.ID != "plan-1" || len(decoded.Specs) != 2 {
		t.Errorf("unexpected plan %+v", decoded)
	}

	env, _ := os.ReadFile(filepath.Join(root, "env.txt"))
	if strings.TrimSpace(string(env)) != "production set" {
		t.Errorf("unexpected environment: %q", env)
	}

	if _, err := os.Stat(filepath.Join(root, executor.WorkDir, "logs", "production.log")); err != nil {
		t.Errorf("expected log file: %v", err)
	}
	if exec.SuccessRate() != 1.0 {
		t.Errorf("expected success rate 1, got %f", exec.SuccessRate())
	}
}

func TestExecute_MissingEntrySource(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(t, root, false)

	exec := executor.NewCommandExecutor("true", root, nil)
	err := exec.Execute(context.Background(), plan)

	var missing *entries.MissingEntrySourceError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingEntrySourceError, got %v", err)
	}
	if _, ok := missing.Entries["app"]; !ok {
		t.Errorf("expected app to be reported, got %v", missing.Entries)
	}
	if _, statErr := os.Stat(executor.PlanPath(root, "production")); !os.IsNotExist(statErr) {
		t.Error("plan must not be written when sources are missing")
	}
}

func TestExecute_CommandFailure(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(t, root, true)

	exec := executor.NewCommandExecutor("echo broken && exit 3", root, nil)
	err := exec.Execute(context.Background(), plan)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should carry command output, got %v", err)
	}
	if exec.SuccessRate() != 0 {
		t.Errorf("expected success rate 0, got %f", exec.SuccessRate())
	}

	logData, _ := os.ReadFile(filepath.Join(root, executor.WorkDir, "logs", "production.log"))
	if !strings.Contains(string(logData), "Build FAILED") {
		t.Errorf("log should record failure:\n%s", logData)
	}
}

func TestExecute_NoCommand(t *testing.T) {
	exec := executor.NewCommandExecutor("", t.TempDir(), nil)
	if err := exec.Execute(context.Background(), &compose.Plan{}); !errors.Is(err, executor.ErrNoCommand) {
		t.Errorf("expected ErrNoCommand, got %v", err)
	}
}
