package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "dualpack"

// PrometheusRecorder implements Recorder with Prometheus vectors
type PrometheusRecorder struct {
	registry         *prom.Registry
	composeDuration  *prom.HistogramVec
	composeOutcome   *prom.CounterVec
	specPlugins      *prom.GaugeVec
	specRules        *prom.GaugeVec
	criticalDuration prom.Histogram
	criticalOutcome  *prom.CounterVec
	executeDuration  *prom.HistogramVec
}

// NewPrometheusRecorder creates the metric vectors and registers them on
// reg, or on a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		composeDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "compose_duration_seconds",
			Help:      "Duration of composing the build specifications of one environment",
			Buckets:   prom.DefBuckets,
		}, []string{"environment"}),
		composeOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "compose_total",
			Help:      "Compositions by environment and outcome",
		}, []string{"environment", "outcome"}),
		specPlugins: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "spec_plugins",
			Help:      "Plugins in the last merged specification",
		}, []string{"target", "environment"}),
		specRules: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "spec_rules",
			Help:      "Pipeline stages in the last merged specification",
		}, []string{"target", "environment"}),
		criticalDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "critical_job_duration_seconds",
			Help:      "Duration of critical style extraction jobs",
			Buckets:   prom.ExponentialBuckets(0.25, 2, 8),
		}),
		criticalOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "critical_jobs_total",
			Help:      "Critical style extraction jobs by outcome",
		}, []string{"outcome"}),
		executeDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "execute_duration_seconds",
			Help:      "Duration of external build executions",
			Buckets:   prom.ExponentialBuckets(1, 2, 8),
		}, []string{"environment", "outcome"}),
	}
	reg.MustRegister(
		pr.composeDuration,
		pr.composeOutcome,
		pr.specPlugins,
		pr.specRules,
		pr.criticalDuration,
		pr.criticalOutcome,
		pr.executeDuration,
	)
	return pr
}

// Registry returns the registry the metrics live on
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveCompose(env string, d time.Duration, outcome Outcome) {
	if p == nil {
		return
	}
	p.composeDuration.WithLabelValues(env).Observe(d.Seconds())
	p.composeOutcome.WithLabelValues(env, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveSpec(target, env string, plugins, rules int) {
	if p == nil {
		return
	}
	p.specPlugins.WithLabelValues(target, env).Set(float64(plugins))
	p.specRules.WithLabelValues(target, env).Set(float64(rules))
}

func (p *PrometheusRecorder) ObserveCriticalJob(_ string, d time.Duration, outcome Outcome) {
	if p == nil {
		return
	}
	p.criticalDuration.Observe(d.Seconds())
	p.criticalOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveExecute(env string, d time.Duration, outcome Outcome) {
	if p == nil {
		return
	}
	p.executeDuration.WithLabelValues(env, string(outcome)).Observe(d.Seconds())
}

// WriteTextfile writes the current metrics in the text exposition format,
// suitable for the node exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
