// Package state is the durable record of step outcomes. Each (target,
// step) pair owns one directory under the state root; a step counts as
// complete only when its outcome file exists and holds a success value.
// Absence or any other content means incomplete, which is what makes
// interrupted runs safely resumable.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
)

// File names inside a step state directory.
const (
	ExitStatusFile = "exit_status"
	ConfirmedFile  = "manual_step_confirmed"
	CastFile       = "asciinema.cast"
)

// Store reads and writes per-step outcome records.
type Store struct {
	env env.Environment
}

// NewStore wires a state store.
func NewStore(e env.Environment) *Store {
	return &Store{env: e}
}

// StepDir is the state directory of one (target, step) pair. Target
// indices are 0-based, step indices 1-based.
func (s *Store) StepDir(task string, targetIdx, stepIdx int) string {
	return s.env.StepStateDir(task, targetIdx, stepIdx)
}

// EnsureStepDir creates the step state directory and returns its path.
// Creation is idempotent; concurrent workers never share a directory.
func (s *Store) EnsureStepDir(task string, targetIdx, stepIdx int) (string, error) {
	dir := s.StepDir(task, targetIdx, stepIdx)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state dir %s: %w", dir, err)
	}
	return dir, nil
}

// CastPath is where the step's terminal recording lands.
func (s *Store) CastPath(task string, targetIdx, stepIdx int) string {
	return filepath.Join(s.StepDir(task, targetIdx, stepIdx), CastFile)
}

// RecordExitStatus persists a run-command outcome. The status is the
// decimal exit code, or empty when the process died without one.
func (s *Store) RecordExitStatus(task string, targetIdx, stepIdx int, status string) error {
	path := filepath.Join(s.StepDir(task, targetIdx, stepIdx), ExitStatusFile)
	if err := os.WriteFile(path, []byte(status), 0o644); err != nil {
		return fmt.Errorf("writing state file %s: %w", path, err)
	}
	return nil
}

// RecordConfirmation persists a manual-step outcome.
func (s *Store) RecordConfirmation(task string, targetIdx, stepIdx int, confirmed bool) error {
	content := "n"
	if confirmed {
		content = "y"
	}
	path := filepath.Join(s.StepDir(task, targetIdx, stepIdx), ConfirmedFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing state file %s: %w", path, err)
	}
	return nil
}

// StepComplete reports whether the step's recorded outcome is a success.
func (s *Store) StepComplete(task string, targetIdx, stepIdx int, step domain.Step) bool {
	dir := s.StepDir(task, targetIdx, stepIdx)
	switch {
	case step.Run != nil:
		content, err := os.ReadFile(filepath.Join(dir, ExitStatusFile))
		return err == nil && strings.TrimSpace(string(content)) == "0"
	case step.Manual != nil:
		content, err := os.ReadFile(filepath.Join(dir, ConfirmedFile))
		return err == nil && strings.TrimSpace(string(content)) == "y"
	}
	return false
}

// TargetComplete reports whether every plan step is complete for the
// target. A plan without steps is vacuously complete.
func (s *Store) TargetComplete(task string, plan domain.Plan, targetIdx int) bool {
	for i, step := range plan.Steps {
		if !s.StepComplete(task, targetIdx, i+1, step) {
			return false
		}
	}
	return true
}

// DependenciesSatisfied reports whether every in-set dependency of the
// target is fully complete. Dependencies that do not map to a target in
// the resolved set are vacuously satisfied.
func (s *Store) DependenciesSatisfied(task string, plan domain.Plan, resolved domain.ResolvedTargetSet, targetIdx int) bool {
	index := resolved.IndexByDir()
	for _, dep := range resolved.Targets[targetIdx].Dependencies {
		depIdx, ok := index[dep]
		if !ok {
			continue
		}
		if !s.TargetComplete(task, plan, depIdx) {
			return false
		}
	}
	return true
}

// CompletionMatrix returns per-target, per-step completion. Rows follow
// resolved-set order, columns follow plan order.
func (s *Store) CompletionMatrix(task string, plan domain.Plan, resolved domain.ResolvedTargetSet) [][]bool {
	matrix := make([][]bool, len(resolved.Targets))
	for targetIdx := range resolved.Targets {
		row := make([]bool, len(plan.Steps))
		for stepIdx, step := range plan.Steps {
			row[stepIdx] = s.StepComplete(task, targetIdx, stepIdx+1, step)
		}
		matrix[targetIdx] = row
	}
	return matrix
}
