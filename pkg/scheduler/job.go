// Package scheduler owns the asynchronous analysis job table. It enforces a
// concurrency cap with a FIFO queue, applies per-job wall-clock timeouts,
// propagates cancellation to running work, and garbage-collects finished
// jobs after a retention window.
//
// The scheduler knows nothing about Gradle or GitHub: it executes an
// injected RunFunc per job, which keeps the state machine testable without
// subprocesses or network.
package scheduler

import (
	"time"

	"github.com/depscout/depscout/pkg/fetch"
	"github.com/depscout/depscout/pkg/gradle"
)

// State is the lifecycle phase of an analysis job.
type State string

// Job states. Transitions are queued -> running -> one of the four terminal
// states, and are monotone: no job leaves a terminal state.
const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timedOut"
	StateCancelled State = "cancelled"
)

// Terminal reports whether a state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// Request describes one analysis submission. Immutable once the job starts.
type Request struct {
	Spec   fetch.RepositorySpec
	Target string
	Mode   gradle.MatchMode

	// Timeout overrides the scheduler's default per-job timeout when > 0.
	Timeout time.Duration
}

// Result is the output of a successful (or advisory) pipeline run.
type Result struct {
	Matches     []gradle.Match
	Descriptors []string

	// Note carries advisory outcomes such as the absence of build files,
	// and annotations about descriptors that failed individually.
	Note string
}

// Job is a snapshot of one analysis job's record. Status returns copies, so
// callers can hold a Job without observing later mutations.
type Job struct {
	ID          string
	Request     Request
	State       State
	Matches     []gradle.Match
	Descriptors []string
	Note        string
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time // zero until the running transition
	CompletedAt time.Time // zero until a terminal transition
}

// clone deep-copies the slices so a returned snapshot is immune to later
// writes.
func (j Job) clone() Job {
	if j.Matches != nil {
		j.Matches = append([]gradle.Match(nil), j.Matches...)
	}
	if j.Descriptors != nil {
		j.Descriptors = append([]string(nil), j.Descriptors...)
	}
	return j
}
