package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"

	"github.com/depscout/depscout/pkg/errors"
	"github.com/depscout/depscout/pkg/fetch"
	"github.com/depscout/depscout/pkg/gradle"
	"github.com/depscout/depscout/pkg/observability"
	"github.com/depscout/depscout/pkg/scheduler"
)

// Fetcher materializes a repository snapshot on local disk.
type Fetcher interface {
	Fetch(ctx context.Context, spec fetch.RepositorySpec) (*fetch.Snapshot, error)
}

// Collector runs the Gradle dependency report for one descriptor and
// configuration and returns its raw textual output.
type Collector interface {
	Collect(ctx context.Context, snapshotDir, descriptor, configuration string) (string, error)
}

// Runner executes the analysis pipeline for one job at a time. It is
// stateless apart from its collaborators and logger, so a single Runner
// serves all concurrent jobs.
type Runner struct {
	Fetcher   Fetcher
	Collector Collector
	Opts      Options
	Logger    *log.Logger
}

// NewRunner wires a runner with the given collaborators. Unset options are
// filled with defaults.
func NewRunner(f Fetcher, c Collector, opts Options, logger *log.Logger) (*Runner, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Fetcher: f, Collector: c, Opts: opts, Logger: logger}, nil
}

// unit is one (descriptor, configuration) collection to run. Units keep
// their slot index so aggregation preserves discovery order regardless of
// which collection finishes first.
type unit struct {
	index         int
	descriptor    string
	configuration string
}

type unitResult struct {
	matches []gradle.Match
	err     error
}

// Run performs fetch → discover → collect/parse/match for one request. It is
// the scheduler.RunFunc for this service.
//
// Error contract: a fetch or discovery failure fails the job with that
// error. Per-unit collection and parse failures are absorbed; the job fails
// only when every unit failed and the declaration scan found nothing. An
// empty snapshot (no build descriptors) completes with an advisory note.
func (r *Runner) Run(ctx context.Context, req scheduler.Request) (*scheduler.Result, error) {
	fetchStart := time.Now()
	snap, err := r.Fetcher.Fetch(ctx, req.Spec)
	observability.Stage().OnFetchComplete(ctx, req.Spec.Slug(), time.Since(fetchStart), err)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := snap.Remove(); rmErr != nil {
			r.Logger.Warn("snapshot cleanup failed", "dir", snap.Dir, "err", rmErr)
		}
	}()

	descriptors, err := gradle.DiscoverDescriptors(snap.Dir)
	if err != nil {
		return nil, err
	}
	if len(descriptors) == 0 {
		r.Logger.Info("no build descriptors", "repo", req.Spec.Slug())
		return &scheduler.Result{Note: NoteNoBuildFiles}, nil
	}
	r.Logger.Info("discovered descriptors",
		"repo", req.Spec.Slug(),
		"count", len(descriptors),
		"configurations", len(r.Opts.Configurations))

	mode := req.Mode
	if mode == "" {
		mode = r.Opts.DefaultMode
	}

	units := make([]unit, 0, len(descriptors)*len(r.Opts.Configurations))
	for _, d := range descriptors {
		for _, cfg := range r.Opts.Configurations {
			units = append(units, unit{index: len(units), descriptor: d, configuration: cfg})
		}
	}

	results := r.collectAll(ctx, snap.Dir, units, req.Target, mode)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matches []gradle.Match
	var failed *multierror.Error
	for _, res := range results {
		if res.err != nil {
			failed = multierror.Append(failed, res.err)
			continue
		}
		matches = append(matches, res.matches...)
	}

	// Build files also declare the target directly (version variables,
	// literal coordinates). Those declarations are reported alongside the
	// resolved trees, and keep a job useful when Gradle itself cannot run.
	declared, scanErr := gradle.ScanDeclarations(snap.Dir, req.Target, mode)
	if scanErr != nil {
		r.Logger.Warn("declaration scan failed", "repo", req.Spec.Slug(), "err", scanErr)
	}

	if failed != nil && failed.Len() == len(units) && len(declared) == 0 {
		return nil, errors.Wrap(errors.ErrCodeInternal, failed,
			"all %d descriptor/configuration analyses failed", len(units))
	}
	matches = append(matches, declared...)

	result := &scheduler.Result{
		Matches:     gradle.DedupeMatches(matches),
		Descriptors: descriptors,
	}
	if failed != nil {
		result.Note = fmt.Sprintf("%d of %d analyses failed: %s",
			failed.Len(), len(units), failed.Error())
	}
	return result, nil
}

// collectAll fans units out over a bounded worker pool and returns their
// outcomes slotted by unit index.
func (r *Runner) collectAll(ctx context.Context, dir string, units []unit, target string, mode gradle.MatchMode) []unitResult {
	results := make([]unitResult, len(units))
	sem := make(chan struct{}, r.Opts.FanOut)
	var wg sync.WaitGroup

	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(u unit) {
			defer wg.Done()
			defer func() { <-sem }()
			results[u.index] = r.collectOne(ctx, dir, u, target, mode)
		}(u)
	}
	wg.Wait()
	return results
}

// collectOne runs one Gradle invocation and matches its parsed tree.
func (r *Runner) collectOne(ctx context.Context, dir string, u unit, target string, mode gradle.MatchMode) unitResult {
	start := time.Now()
	output, err := r.Collector.Collect(ctx, dir, u.descriptor, u.configuration)
	observability.Stage().OnCollectComplete(ctx, u.descriptor, u.configuration, time.Since(start), err)
	if err != nil {
		r.Logger.Warn("collection failed",
			"descriptor", u.descriptor,
			"configuration", u.configuration,
			"err", err)
		code := errors.GetCode(err)
		if code == "" {
			code = errors.ErrCodeInternal
		}
		return unitResult{err: errors.Wrap(code, err, "%s [%s]", u.descriptor, u.configuration)}
	}

	tree, err := gradle.ParseTree(u.descriptor, u.configuration, output)
	if err != nil {
		r.Logger.Warn("tree parse failed",
			"descriptor", u.descriptor,
			"configuration", u.configuration,
			"err", err)
		return unitResult{err: err}
	}

	return unitResult{matches: gradle.FindMatches(tree, target, mode)}
}
