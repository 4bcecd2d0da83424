package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveCompose("production", 20*time.Millisecond, OutcomeSuccess)
	pr.ObserveSpec("legacy", "production", 11, 4)
	pr.ObserveCriticalJob("index", time.Second, OutcomeFailed)
	pr.ObserveExecute("production", 3*time.Second, OutcomeSuccess)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"dualpack_compose_total",
		"dualpack_compose_duration_seconds",
		"dualpack_spec_plugins",
		"dualpack_critical_jobs_total",
		"dualpack_execute_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("missing metric %s", want)
		}
	}
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.ObserveCompose("development", time.Millisecond, OutcomeSuccess)

	path := filepath.Join(t.TempDir(), "dualpack.prom")
	if err := pr.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `dualpack_compose_total{environment="development",outcome="success"} 1`) {
		t.Errorf("unexpected textfile contents:\n%s", data)
	}
}

func TestNilPrometheusRecorder(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveCompose("production", time.Second, OutcomeFailed)
	pr.ObserveCriticalJob("index", time.Second, OutcomeSuccess)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveCompose("production", time.Second, OutcomeSuccess)
	r.ObserveSpec("modern", "production", 1, 1)
}

func TestOutcomeOf(t *testing.T) {
	if OutcomeOf(nil, true) != OutcomeSuccess {
		t.Error("nil error is success")
	}
	if OutcomeOf(os.ErrNotExist, true) != OutcomeCanceled {
		t.Error("canceled error")
	}
	if OutcomeOf(os.ErrNotExist, false) != OutcomeFailed {
		t.Error("failed error")
	}
}
