// Package tasks manages task snapshots. A task binds one plan and one
// resolved target set under a name; the snapshot is frozen at creation
// time so later edits to the plan or target set cannot change what an
// in-progress task executes.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/plans"
	"github.com/hochfrequenz/cargo-for-each/internal/registry"
	"github.com/hochfrequenz/cargo-for-each/internal/resolver"
	"github.com/hochfrequenz/cargo-for-each/internal/targetsets"
)

const (
	planFile        = "plan.toml"
	targetSetFile   = "target-set.toml"
	resolvedSetFile = "resolved-target-set.toml"
)

// Task is a loaded snapshot: the frozen plan and resolved target set.
type Task struct {
	Name     string
	Plan     domain.Plan
	Resolved domain.ResolvedTargetSet
}

// NotFoundError reports a missing task.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.Name)
}

// AlreadyExistsError reports a create collision.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("task %s already exists", e.Name)
}

// Manager creates, loads and removes task snapshots.
type Manager struct {
	env      env.Environment
	resolver *resolver.Resolver
	logger   *slog.Logger
}

// NewManager wires a task manager.
func NewManager(e env.Environment, res *resolver.Resolver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{env: e, resolver: res, logger: logger}
}

// Create freezes a new task snapshot. The plan and target-set documents
// must exist; their files are copied verbatim into the task directory and
// the target set is resolved once, here.
func (m *Manager) Create(ctx context.Context, name, planName, targetSetName string) error {
	if err := domain.ValidateDocumentName(name); err != nil {
		return err
	}

	planPath := filepath.Join(m.env.PlansDir(), planName+".toml")
	if !isFile(planPath) {
		return &plans.NotFoundError{Name: planName}
	}
	targetSetPath := filepath.Join(m.env.TargetSetsDir(), targetSetName+".toml")
	if !isFile(targetSetPath) {
		return &targetsets.NotFoundError{Name: targetSetName}
	}

	reg, err := registry.Load(m.env)
	if err != nil {
		return err
	}
	set, err := targetsets.NewStore(m.env).Load(targetSetName)
	if err != nil {
		return err
	}
	resolved, err := m.resolver.Resolve(ctx, set, reg)
	if err != nil {
		return err
	}

	taskDir := m.env.TaskDir(name)
	if _, err := os.Stat(taskDir); err == nil {
		return &AlreadyExistsError{Name: name}
	}
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return fmt.Errorf("creating task dir %s: %w", taskDir, err)
	}

	if err := copyFile(planPath, filepath.Join(taskDir, planFile)); err != nil {
		return err
	}
	if err := copyFile(targetSetPath, filepath.Join(taskDir, targetSetFile)); err != nil {
		return err
	}

	data, err := toml.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("serializing resolved target set: %w", err)
	}
	if err := os.WriteFile(filepath.Join(taskDir, resolvedSetFile), data, 0o644); err != nil {
		return fmt.Errorf("writing resolved target set: %w", err)
	}

	m.logger.Debug("created task",
		"task", name, "plan", planName, "target_set", targetSetName,
		"targets", len(resolved.Targets))
	return nil
}

// Load reads a task snapshot.
func (m *Manager) Load(name string) (*Task, error) {
	if err := domain.ValidateDocumentName(name); err != nil {
		return nil, err
	}
	taskDir := m.env.TaskDir(name)
	if _, err := os.Stat(taskDir); errors.Is(err, os.ErrNotExist) {
		return nil, &NotFoundError{Name: name}
	}

	var plan domain.Plan
	if err := readTOML(filepath.Join(taskDir, planFile), &plan); err != nil {
		return nil, err
	}
	for i, step := range plan.Steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("task %s plan step %d: %w", name, i+1, err)
		}
	}

	var resolved domain.ResolvedTargetSet
	if err := readTOML(filepath.Join(taskDir, resolvedSetFile), &resolved); err != nil {
		return nil, err
	}

	return &Task{Name: name, Plan: plan, Resolved: resolved}, nil
}

// Remove deletes the task snapshot and its whole execution-state subtree.
func (m *Manager) Remove(name string) error {
	if err := domain.ValidateDocumentName(name); err != nil {
		return err
	}
	taskDir := m.env.TaskDir(name)
	if _, err := os.Stat(taskDir); errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Name: name}
	}
	if err := os.RemoveAll(taskDir); err != nil {
		return fmt.Errorf("removing task dir %s: %w", taskDir, err)
	}
	stateDir := m.env.TaskStateDir(name)
	if err := os.RemoveAll(stateDir); err != nil {
		return fmt.Errorf("removing task state %s: %w", stateDir, err)
	}
	m.logger.Debug("removed task", "task", name)
	return nil
}

// List returns every task name, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.env.TasksDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tasks dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func readTOML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
