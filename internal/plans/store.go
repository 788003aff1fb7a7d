// Package plans persists named plan documents and applies step mutations
// to them. Step positions are 1-based everywhere, matching how the list
// output numbers them.
package plans

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/probe"
)

// Store reads, writes and mutates plan documents.
type Store struct {
	env env.Environment
}

// NewStore wires a plan store.
func NewStore(e env.Environment) *Store {
	return &Store{env: e}
}

// NotFoundError reports a missing plan document.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("plan %s not found", e.Name)
}

// AlreadyExistsError reports a create collision.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("plan %s already exists", e.Name)
}

// StepOutOfBoundsError reports a step position outside the plan.
type StepOutOfBoundsError struct {
	Position int
	Steps    int
}

func (e *StepOutOfBoundsError) Error() string {
	return fmt.Sprintf("step position %d is out of bounds for a plan with %d steps", e.Position, e.Steps)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.env.PlansDir(), name+".toml")
}

// Load reads one plan document. A missing plan loads as an empty plan, so
// step mutations on a fresh name create the document.
func (s *Store) Load(name string) (domain.Plan, error) {
	if err := domain.ValidateDocumentName(name); err != nil {
		return domain.Plan{}, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return domain.Plan{}, nil
	}
	if err != nil {
		return domain.Plan{}, fmt.Errorf("reading plan %s: %w", name, err)
	}

	var plan domain.Plan
	if err := toml.Unmarshal(data, &plan); err != nil {
		return domain.Plan{}, fmt.Errorf("parsing plan %s: %w", name, err)
	}
	for i, step := range plan.Steps {
		if err := step.Validate(); err != nil {
			return domain.Plan{}, fmt.Errorf("plan %s step %d: %w", name, i+1, err)
		}
	}
	return plan, nil
}

// Create writes a new empty plan, refusing to overwrite an existing one.
func (s *Store) Create(name string) error {
	if err := domain.ValidateDocumentName(name); err != nil {
		return err
	}
	if _, err := os.Stat(s.path(name)); err == nil {
		return &AlreadyExistsError{Name: name}
	}
	return s.save(name, domain.Plan{})
}

// Delete removes one plan document.
func (s *Store) Delete(name string) error {
	if err := domain.ValidateDocumentName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Name: name}
	}
	if err != nil {
		return fmt.Errorf("removing plan %s: %w", name, err)
	}
	return nil
}

// List returns every stored plan name, sorted. A missing store directory
// yields an empty list.
func (s *Store) List() ([]string, error) {
	dirEntries, err := os.ReadDir(s.env.PlansDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading plans dir: %w", err)
	}

	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".toml") {
			continue
		}
		names = append(names, strings.TrimSuffix(de.Name(), ".toml"))
	}
	sort.Strings(names)
	return names, nil
}

// AddStep validates the step and appends it to the plan.
func (s *Store) AddStep(name string, step domain.Step) error {
	if err := s.validateStep(step); err != nil {
		return err
	}
	plan, err := s.Load(name)
	if err != nil {
		return err
	}
	plan.Steps = append(plan.Steps, step)
	return s.save(name, plan)
}

// InsertStep validates the step and inserts it at the 1-based position.
// Position len+1 appends.
func (s *Store) InsertStep(name string, position int, step domain.Step) error {
	if err := s.validateStep(step); err != nil {
		return err
	}
	plan, err := s.Load(name)
	if err != nil {
		return err
	}
	if position < 1 || position > len(plan.Steps)+1 {
		return &StepOutOfBoundsError{Position: position, Steps: len(plan.Steps)}
	}
	plan.Steps = append(plan.Steps, domain.Step{})
	copy(plan.Steps[position:], plan.Steps[position-1:])
	plan.Steps[position-1] = step
	return s.save(name, plan)
}

// RemoveStep deletes the step at the 1-based position.
func (s *Store) RemoveStep(name string, position int) error {
	plan, err := s.Load(name)
	if err != nil {
		return err
	}
	if position < 1 || position > len(plan.Steps) {
		return &StepOutOfBoundsError{Position: position, Steps: len(plan.Steps)}
	}
	plan.Steps = append(plan.Steps[:position-1], plan.Steps[position:]...)
	return s.save(name, plan)
}

func (s *Store) validateStep(step domain.Step) error {
	if err := step.Validate(); err != nil {
		return err
	}
	if step.Run != nil && !probe.Executable(step.Run.Command, s.env.PathDirs) {
		return &probe.CommandNotFoundError{Command: step.Run.Command}
	}
	return nil
}

func (s *Store) save(name string, plan domain.Plan) error {
	if err := os.MkdirAll(s.env.PlansDir(), 0o755); err != nil {
		return fmt.Errorf("creating plans dir: %w", err)
	}
	data, err := toml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("serializing plan %s: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("writing plan %s: %w", name, err)
	}
	return nil
}
