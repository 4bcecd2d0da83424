// Package metrics records composition and critical extraction metrics
package metrics

import "time"

// Outcome labels a finished operation
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Recorder receives observability hooks. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveCompose(env string, d time.Duration, outcome Outcome)
	ObserveSpec(target, env string, plugins, rules int)
	ObserveCriticalJob(template string, d time.Duration, outcome Outcome)
	ObserveExecute(env string, d time.Duration, outcome Outcome)
}

// NoopRecorder is the default when metrics are not configured
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompose(string, time.Duration, Outcome)     {}
func (NoopRecorder) ObserveSpec(string, string, int, int)              {}
func (NoopRecorder) ObserveCriticalJob(string, time.Duration, Outcome) {}
func (NoopRecorder) ObserveExecute(string, time.Duration, Outcome)     {}

// OutcomeOf maps an error to an outcome label
func OutcomeOf(err error, canceled bool) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case canceled:
		return OutcomeCanceled
	default:
		return OutcomeFailed
	}
}
