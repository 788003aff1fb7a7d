// Package executor runs single plan steps. Run-command steps execute
// under an asciinema recording wrapper inside the target directory;
// manual steps open a recorded interactive shell and ask the operator for
// confirmation. Every attempt leaves an outcome record in the state store
// and a row in the journal.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/journal"
	"github.com/hochfrequenz/cargo-for-each/internal/probe"
	"github.com/hochfrequenz/cargo-for-each/internal/state"
)

const recorder = "asciinema"

// ErrManualStepNotConfirmed is returned when the operator answers the
// confirmation prompt with anything but an affirmative.
var ErrManualStepNotConfirmed = errors.New("manual step was not confirmed")

// LaunchError reports that a process could not be started at all.
type LaunchError struct {
	Command string
	Dir     string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("could not execute %s in %s: %v", e.Command, e.Dir, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// CommandFailedError reports a recorded command that exited unsuccessfully.
type CommandFailedError struct {
	CommandLine string
	Dir         string
	ExitCode    int
}

func (e *CommandFailedError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("command %q in %s was terminated by a signal", e.CommandLine, e.Dir)
	}
	return fmt.Sprintf("command %q in %s failed with exit code %d", e.CommandLine, e.Dir, e.ExitCode)
}

// StepRequest identifies one step execution: which task, which step of
// the plan, against which target. Target indices are 0-based, step
// indices 1-based.
type StepRequest struct {
	Task      string
	Step      domain.Step
	TargetDir string
	TargetIdx int
	StepIdx   int
}

// Config wires an executor. Zero-value fields fall back to the real
// process runner and the process stdio.
type Config struct {
	State   *state.Store
	Journal *journal.Journal
	Runner  Runner
	Env     env.Environment
	Input   io.Reader
	Output  io.Writer
	Logger  *slog.Logger
}

// Executor runs steps.
type Executor struct {
	state   *state.Store
	journal *journal.Journal
	runner  Runner
	env     env.Environment
	input   *bufio.Reader
	output  io.Writer
	logger  *slog.Logger
}

// New builds an executor from the config.
func New(cfg Config) *Executor {
	if cfg.Runner == nil {
		cfg.Runner = &ExecRunner{}
	}
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{
		state:   cfg.State,
		journal: cfg.Journal,
		runner:  cfg.Runner,
		env:     cfg.Env,
		input:   bufio.NewReader(cfg.Input),
		output:  cfg.Output,
		logger:  cfg.Logger,
	}
}

// Execute runs one step and records its outcome. The error reports the
// step's failure; the persisted record is written regardless, so an
// interrupted or failed step is retried on the next run.
func (e *Executor) Execute(ctx context.Context, req StepRequest) error {
	if err := req.Step.Validate(); err != nil {
		return err
	}
	if _, err := e.state.EnsureStepDir(req.Task, req.TargetIdx, req.StepIdx); err != nil {
		return err
	}
	castPath := e.state.CastPath(req.Task, req.TargetIdx, req.StepIdx)

	if req.Step.Run != nil {
		return e.runCommand(ctx, req, castPath)
	}
	return e.runManual(ctx, req, castPath)
}

func (e *Executor) runCommand(ctx context.Context, req StepRequest, castPath string) error {
	run := req.Step.Run
	if !probe.Executable(run.Command, e.env.PathDirs) {
		return &probe.CommandNotFoundError{Command: run.Command}
	}

	commandLine := run.CommandLine()
	e.logger.Debug("running command step",
		"task", req.Task, "target_idx", req.TargetIdx, "step_idx", req.StepIdx,
		"command", commandLine)

	started := time.Now()
	code, err := e.runner.Run(ctx, req.TargetDir, recorder, "record", "-c", commandLine, castPath)
	if err != nil {
		return &LaunchError{Command: recorder, Dir: req.TargetDir, Err: err}
	}

	status := strconv.Itoa(code)
	if code < 0 {
		// Killed by a signal; there is no exit code to record.
		status = ""
	}
	if err := e.state.RecordExitStatus(req.Task, req.TargetIdx, req.StepIdx, status); err != nil {
		return err
	}
	e.recordAttempt(req, journal.KindRunCommand, commandLine, status, started)

	if code != 0 {
		return &CommandFailedError{CommandLine: commandLine, Dir: req.TargetDir, ExitCode: code}
	}
	return nil
}

func (e *Executor) runManual(ctx context.Context, req StepRequest, castPath string) error {
	manual := req.Step.Manual
	fmt.Fprintf(e.output, "--- Manual Step: %s ---\n", manual.Title)
	fmt.Fprintln(e.output, manual.Instructions)
	fmt.Fprintf(e.output, "Starting a recording shell in %s. Press Ctrl+D or type `exit` to continue.\n", req.TargetDir)

	started := time.Now()
	code, err := e.runner.Run(ctx, req.TargetDir, recorder, "record", castPath)
	if err != nil {
		return &LaunchError{Command: recorder, Dir: req.TargetDir, Err: err}
	}
	if code != 0 {
		fmt.Fprintf(e.output, "Shell exited with a non-zero status code: %d\n", code)
	}

	fmt.Fprint(e.output, "Was the manual step completed successfully? (y/N) ")
	line, err := e.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	confirmed := answer == "y" || answer == "yes"

	if err := e.state.RecordConfirmation(req.Task, req.TargetIdx, req.StepIdx, confirmed); err != nil {
		return err
	}
	outcome := "n"
	if confirmed {
		outcome = "y"
	}
	e.recordAttempt(req, journal.KindManualStep, manual.Title, outcome, started)

	if !confirmed {
		return ErrManualStepNotConfirmed
	}
	return nil
}

// recordAttempt writes the journal row. Journal failures are logged, not
// propagated; the state store already holds the authoritative outcome.
func (e *Executor) recordAttempt(req StepRequest, kind, detail, outcome string, started time.Time) {
	err := e.journal.Record(journal.Attempt{
		Task:       req.Task,
		TargetIdx:  req.TargetIdx,
		StepIdx:    req.StepIdx,
		StepKind:   kind,
		Detail:     detail,
		Outcome:    outcome,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	if err != nil {
		e.logger.Warn("could not record attempt in journal", "task", req.Task, "error", err)
	}
}
