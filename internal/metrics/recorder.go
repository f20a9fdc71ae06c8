// Package metrics records build submission outcomes. The orchestrator takes a
// Recorder so metrics stay optional; NoopRecorder is the default.
package metrics

import "time"

// Outcome enumerates the result of a build submission.
type Outcome string

const (
	OutcomeStarted Outcome = "started"
	OutcomeSkipped Outcome = "skipped" // no build definition for the action
	OutcomeFailed  Outcome = "failed"
)

// Recorder defines observability hooks for build submissions.
type Recorder interface {
	IncBuildOutcome(action string, outcome Outcome)
	ObserveStartDuration(action string, d time.Duration)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncBuildOutcome(string, Outcome)            {}
func (NoopRecorder) ObserveStartDuration(string, time.Duration) {}
