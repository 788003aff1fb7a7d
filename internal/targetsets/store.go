// Package targetsets persists named target-set documents, one TOML file
// per name under the config root.
package targetsets

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
)

// Store reads and writes target-set documents.
type Store struct {
	env env.Environment
}

// NewStore wires a target-set store.
func NewStore(e env.Environment) *Store {
	return &Store{env: e}
}

// NotFoundError reports a missing target-set document.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("target set %s not found", e.Name)
}

// AlreadyExistsError reports a create collision.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("target set %s already exists", e.Name)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.env.TargetSetsDir(), name+".toml")
}

// Load reads and validates one target-set document.
func (s *Store) Load(name string) (domain.TargetSet, error) {
	if err := domain.ValidateDocumentName(name); err != nil {
		return domain.TargetSet{}, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return domain.TargetSet{}, &NotFoundError{Name: name}
	}
	if err != nil {
		return domain.TargetSet{}, fmt.Errorf("reading target set %s: %w", name, err)
	}

	var set domain.TargetSet
	if err := toml.Unmarshal(data, &set); err != nil {
		return domain.TargetSet{}, fmt.Errorf("parsing target set %s: %w", name, err)
	}
	if err := set.Validate(); err != nil {
		return domain.TargetSet{}, fmt.Errorf("target set %s: %w", name, err)
	}
	return set, nil
}

// Create writes a new target-set document, refusing to overwrite an
// existing one.
func (s *Store) Create(name string, set domain.TargetSet) error {
	if err := domain.ValidateDocumentName(name); err != nil {
		return err
	}
	if err := set.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(s.path(name)); err == nil {
		return &AlreadyExistsError{Name: name}
	}
	if err := os.MkdirAll(s.env.TargetSetsDir(), 0o755); err != nil {
		return fmt.Errorf("creating target sets dir: %w", err)
	}
	data, err := toml.Marshal(set)
	if err != nil {
		return fmt.Errorf("serializing target set %s: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("writing target set %s: %w", name, err)
	}
	return nil
}

// Remove deletes one target-set document.
func (s *Store) Remove(name string) error {
	if err := domain.ValidateDocumentName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Name: name}
	}
	if err != nil {
		return fmt.Errorf("removing target set %s: %w", name, err)
	}
	return nil
}

// Entry pairs a document name with its raw TOML body, the shape the list
// command prints.
type Entry struct {
	Name    string
	Content string
}

// List returns every stored target set sorted by name. A missing store
// directory yields an empty list.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.env.TargetSetsDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading target sets dir: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".toml") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(s.env.TargetSetsDir(), de.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading target set %s: %w", de.Name(), err)
		}
		entries = append(entries, Entry{
			Name:    strings.TrimSuffix(de.Name(), ".toml"),
			Content: string(content),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
