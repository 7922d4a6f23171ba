// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about job lifecycle and pipeline stages.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach avoids import cycles (hooks are registered by main, not by
// libraries) and keeps the core free of observability framework imports.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetJobHooks(&myJobHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Job().OnJobStart(ctx, jobID, repo)
package observability

import (
	"context"
	"sync"
	"time"
)

// JobHooks receives events from the job scheduler.
type JobHooks interface {
	// OnJobQueued records a job entering the queue.
	OnJobQueued(ctx context.Context, jobID, repository string)

	// OnJobStart records the queued -> running promotion.
	OnJobStart(ctx context.Context, jobID, repository string)

	// OnJobFinish records a terminal transition with the final state name.
	OnJobFinish(ctx context.Context, jobID, state string, matches int, duration time.Duration)

	// OnJobEvicted records garbage collection of a retained job record.
	OnJobEvicted(ctx context.Context, jobID string)
}

// StageHooks receives events from the per-job analysis pipeline.
type StageHooks interface {
	// OnFetchComplete records a snapshot fetch attempt.
	OnFetchComplete(ctx context.Context, repository string, duration time.Duration, err error)

	// OnCollectComplete records one build tool invocation.
	OnCollectComplete(ctx context.Context, descriptor, configuration string, duration time.Duration, err error)
}

// NoopJobHooks is a no-op implementation of JobHooks.
type NoopJobHooks struct{}

func (NoopJobHooks) OnJobQueued(context.Context, string, string)                     {}
func (NoopJobHooks) OnJobStart(context.Context, string, string)                      {}
func (NoopJobHooks) OnJobFinish(context.Context, string, string, int, time.Duration) {}
func (NoopJobHooks) OnJobEvicted(context.Context, string)                            {}

// NoopStageHooks is a no-op implementation of StageHooks.
type NoopStageHooks struct{}

func (NoopStageHooks) OnFetchComplete(context.Context, string, time.Duration, error)           {}
func (NoopStageHooks) OnCollectComplete(context.Context, string, string, time.Duration, error) {}

var (
	jobHooks   JobHooks   = NoopJobHooks{}
	stageHooks StageHooks = NoopStageHooks{}
	hooksMu    sync.RWMutex
)

// SetJobHooks registers custom job hooks.
// This should be called once at application startup before jobs are submitted.
func SetJobHooks(h JobHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		jobHooks = h
	}
}

// SetStageHooks registers custom pipeline stage hooks.
// This should be called once at application startup before jobs are submitted.
func SetStageHooks(h StageHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		stageHooks = h
	}
}

// Job returns the registered job hooks.
func Job() JobHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return jobHooks
}

// Stage returns the registered stage hooks.
func Stage() StageHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return stageHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	jobHooks = NoopJobHooks{}
	stageHooks = NoopStageHooks{}
}
