// Package scheduler drives step execution across the targets of a task.
//
// All three run modes pick work in dependency order: a target becomes
// eligible only once every in-set dependency is fully complete. The
// all-targets mode executes wavefronts of eligible targets concurrently,
// bounded by a job limit, and re-computes eligibility after each wavefront
// so that dependents unlock as soon as their dependencies finish.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/cargo-for-each/internal/executor"
	"github.com/hochfrequenz/cargo-for-each/internal/state"
	"github.com/hochfrequenz/cargo-for-each/internal/tasks"
)

// ErrSomeStepsFailed is returned by a keep-going run after all possible
// progress has been made but at least one target recorded a failure.
var ErrSomeStepsFailed = errors.New("some steps failed")

// CircularDependencyError is reported when incomplete targets remain but
// none of them can ever become eligible because their dependencies form a
// cycle within the resolved set.
type CircularDependencyError struct {
	Remaining []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency between the remaining targets: %s", strings.Join(e.Remaining, ", "))
}

// StepRunner executes a single step of a task against one target.
type StepRunner interface {
	Execute(ctx context.Context, req executor.StepRequest) error
}

// Config carries the scheduler dependencies.
type Config struct {
	State  *state.Store
	Runner StepRunner
	// Output receives the progress lines shown to the operator. Defaults
	// to os.Stdout.
	Output io.Writer
	Logger *slog.Logger
}

// Scheduler selects eligible targets of a task and runs their remaining
// steps through a StepRunner.
type Scheduler struct {
	state  *state.Store
	runner StepRunner
	out    io.Writer
	logger *slog.Logger
}

func New(cfg Config) *Scheduler {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		state:  cfg.State,
		runner: cfg.Runner,
		out:    out,
		logger: logger,
	}
}

// RunSingleStep runs the first incomplete step of the first eligible target
// and stops. When every target is complete it reports that and succeeds.
func (s *Scheduler) RunSingleStep(ctx context.Context, task tasks.Task) error {
	targetIdx, found, err := s.firstEligibleTarget(task)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(s.out, "All steps for all targets completed successfully.")
		return nil
	}

	target := task.Resolved.Targets[targetIdx]
	for stepIdx, step := range task.Plan.Steps {
		stepNumber := stepIdx + 1
		if s.state.StepComplete(task.Name, targetIdx, stepNumber, step) {
			continue
		}
		fmt.Fprintf(s.out, "Running step %d for target %s\n", stepNumber, target.ManifestDir)
		return s.runner.Execute(ctx, executor.StepRequest{
			Task:      task.Name,
			Step:      step,
			TargetDir: target.ManifestDir,
			TargetIdx: targetIdx,
			StepIdx:   stepNumber,
		})
	}
	return nil
}

// RunSingleTarget runs every remaining step of the first eligible target.
func (s *Scheduler) RunSingleTarget(ctx context.Context, task tasks.Task) error {
	targetIdx, found, err := s.firstEligibleTarget(task)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(s.out, "All steps for all targets completed successfully.")
		return nil
	}

	fmt.Fprintf(s.out, "Found incomplete steps for target %s, running all remaining steps for it.\n",
		task.Resolved.Targets[targetIdx].ManifestDir)
	return s.runTarget(ctx, task, targetIdx)
}

// AllTargetsOptions controls an all-targets run.
type AllTargetsOptions struct {
	// Jobs bounds how many targets execute concurrently. Values below 1
	// mean fully sequential execution.
	Jobs int
	// KeepGoing records target failures and keeps driving unrelated
	// targets instead of aborting on the first error.
	KeepGoing bool
}

// RunAllTargets drives the whole task to completion in wavefronts. Each
// iteration collects the eligible targets, dispatches them concurrently up
// to the job limit, and waits for the batch before computing the next
// wavefront. A failed target keeps its dependents blocked for the rest of
// the run; under keep-going the run still finishes all reachable work and
// then returns ErrSomeStepsFailed.
func (s *Scheduler) RunAllTargets(ctx context.Context, task tasks.Task, opts AllTargetsOptions) error {
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	var mu sync.Mutex
	failed := make(map[int]error)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		eligible, incomplete := s.eligibleTargets(task, failed)
		if incomplete == 0 {
			break
		}
		if len(eligible) == 0 {
			if len(failed) > 0 {
				// Everything still incomplete is blocked behind a
				// recorded failure; stop and report the aggregate.
				break
			}
			return &CircularDependencyError{Remaining: s.remainingDirs(task, failed)}
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(jobs)
		for _, targetIdx := range eligible {
			targetIdx := targetIdx // per-iteration copy; required while go.mod targets go < 1.22
			g.Go(func() error {
				err := s.runTarget(gctx, task, targetIdx)
				if err == nil {
					return nil
				}
				if !opts.KeepGoing {
					return err
				}
				s.logger.Error("target failed, continuing with the remaining targets",
					"task", task.Name,
					"target", task.Resolved.Targets[targetIdx].ManifestDir,
					"error", err)
				mu.Lock()
				failed[targetIdx] = err
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return ErrSomeStepsFailed
	}
	return nil
}

// runTarget executes the remaining steps of one target in plan order,
// stopping at the target's first failure. Cancellation is observed between
// steps; a step that already started is allowed to finish.
func (s *Scheduler) runTarget(ctx context.Context, task tasks.Task, targetIdx int) error {
	target := task.Resolved.Targets[targetIdx]
	for stepIdx, step := range task.Plan.Steps {
		stepNumber := stepIdx + 1
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.state.StepComplete(task.Name, targetIdx, stepNumber, step) {
			continue
		}
		fmt.Fprintf(s.out, "Running step %d for target %s\n", stepNumber, target.ManifestDir)
		err := s.runner.Execute(ctx, executor.StepRequest{
			Task:      task.Name,
			Step:      step,
			TargetDir: target.ManifestDir,
			TargetIdx: targetIdx,
			StepIdx:   stepNumber,
		})
		if err != nil {
			return fmt.Errorf("running step %d for target %s: %w", stepNumber, target.ManifestDir, err)
		}
	}
	return nil
}

// firstEligibleTarget returns the first incomplete target whose
// dependencies are satisfied, in resolved-set order. When incomplete
// targets remain but none is eligible, the set contains a cycle.
func (s *Scheduler) firstEligibleTarget(task tasks.Task) (int, bool, error) {
	incomplete := 0
	for idx := range task.Resolved.Targets {
		if s.state.TargetComplete(task.Name, task.Plan, idx) {
			continue
		}
		incomplete++
		if s.state.DependenciesSatisfied(task.Name, task.Plan, task.Resolved, idx) {
			return idx, true, nil
		}
	}
	if incomplete > 0 {
		return 0, false, &CircularDependencyError{Remaining: s.remainingDirs(task, nil)}
	}
	return 0, false, nil
}

// eligibleTargets collects the indices of targets that are incomplete,
// have not failed during this run, and have all dependencies satisfied.
// incomplete counts every target with remaining work, failed ones included.
func (s *Scheduler) eligibleTargets(task tasks.Task, failed map[int]error) (eligible []int, incomplete int) {
	for idx := range task.Resolved.Targets {
		if s.state.TargetComplete(task.Name, task.Plan, idx) {
			continue
		}
		incomplete++
		if _, ok := failed[idx]; ok {
			continue
		}
		if s.state.DependenciesSatisfied(task.Name, task.Plan, task.Resolved, idx) {
			eligible = append(eligible, idx)
		}
	}
	return eligible, incomplete
}

func (s *Scheduler) remainingDirs(task tasks.Task, failed map[int]error) []string {
	var dirs []string
	for idx, target := range task.Resolved.Targets {
		if s.state.TargetComplete(task.Name, task.Plan, idx) {
			continue
		}
		if _, ok := failed[idx]; ok {
			continue
		}
		dirs = append(dirs, target.ManifestDir)
	}
	return dirs
}
