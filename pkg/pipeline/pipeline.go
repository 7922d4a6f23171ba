// Package pipeline runs the complete analysis for one job: fetch a
// repository snapshot, discover Gradle build descriptors, then collect,
// parse, and match the dependency report for every descriptor and
// configuration pair.
//
// The package is transport-agnostic: the scheduler drives it through a
// RunFunc, and both the HTTP API and the one-shot CLI command reuse the same
// Runner.
//
// # Usage
//
// Create a Runner and hand its Run method to the scheduler:
//
//	runner := pipeline.NewRunner(fetcher, collector, pipeline.Options{}, logger)
//	sched := scheduler.New(cfg, runner.Run, logger)
//
// Per-descriptor failures are absorbed: the job completes with an advisory
// note unless the fetch fails or every descriptor/configuration pair fails.
package pipeline

import (
	"github.com/depscout/depscout/pkg/errors"
	"github.com/depscout/depscout/pkg/gradle"
)

// Default fan-out and configuration set. The configurations mirror the
// classpaths that matter for dependency audits: what compiles, what ships,
// and what the tests compile against.
const DefaultFanOut = 4

// DefaultConfigurations returns the Gradle configurations analyzed when the
// caller does not override them.
func DefaultConfigurations() []string {
	return []string{"compileClasspath", "runtimeClasspath", "testCompileClasspath"}
}

// NoteNoBuildFiles is the advisory attached to jobs whose snapshot contains
// no Gradle build descriptors. The job still completes.
const NoteNoBuildFiles = "no Gradle build files found in repository"

// Options tunes a Runner. The zero value is usable: every field has a
// default applied by ValidateAndSetDefaults.
type Options struct {
	// Configurations is the set of Gradle configurations resolved per
	// descriptor.
	Configurations []string

	// FanOut bounds concurrent Gradle invocations within a single job.
	FanOut int

	// DefaultMode applies when a request does not carry a match mode.
	DefaultMode gradle.MatchMode
}

// ValidateAndSetDefaults fills unset fields and rejects invalid ones.
func (o *Options) ValidateAndSetDefaults() error {
	if len(o.Configurations) == 0 {
		o.Configurations = DefaultConfigurations()
	}
	if o.FanOut <= 0 {
		o.FanOut = DefaultFanOut
	}
	if o.DefaultMode == "" {
		o.DefaultMode = gradle.MatchExact
	}
	if !gradle.ValidMatchModes[o.DefaultMode] {
		return errors.New(errors.ErrCodeInvalidMatchMode, "unknown match mode %q", o.DefaultMode)
	}
	return nil
}
