package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/logging"
	"github.com/hochfrequenz/cargo-for-each/internal/metadata"
	"github.com/hochfrequenz/cargo-for-each/internal/plans"
	"github.com/hochfrequenz/cargo-for-each/internal/registry"
	"github.com/hochfrequenz/cargo-for-each/internal/resolver"
	"github.com/hochfrequenz/cargo-for-each/internal/targetsets"
)

type fakeOracle struct {
	results map[string]*metadata.Metadata
}

func (f *fakeOracle) Query(_ context.Context, manifestPath string) (*metadata.Metadata, error) {
	m, ok := f.results[manifestPath]
	if !ok {
		return nil, &metadata.QueryError{ManifestPath: manifestPath, Err: fmt.Errorf("no canned result")}
	}
	return m, nil
}

func (f *fakeOracle) QueryNoDeps(ctx context.Context, manifestPath string) (*metadata.Metadata, error) {
	return f.Query(ctx, manifestPath)
}

type fixture struct {
	env     env.Environment
	manager *Manager
	plans   *plans.Store
	sets    *targetsets.Store
}

// newFixture builds an environment with one registered crate, one plan
// with two steps and one crate target set.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	binDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(binDir, "cargo"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	e := env.Environment{
		ConfigRoot: t.TempDir(),
		StateRoot:  t.TempDir(),
		PathDirs:   []string{binDir},
	}
	logger := logging.New(logging.Options{Writer: io.Discard})

	crateRoot := t.TempDir()
	crateDir := filepath.Join(crateRoot, "app")
	if err := os.MkdirAll(crateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(crateDir, "Cargo.toml"), []byte("[package]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	canonicalDir, err := env.Canonicalize(crateDir)
	if err != nil {
		t.Fatal(err)
	}

	reg := &registry.Registry{
		Crates: []domain.Crate{{
			ManifestDir:          canonicalDir,
			WorkspaceManifestDir: canonicalDir,
			Types:                []domain.CrateType{domain.CrateTypeBin},
		}},
	}
	if err := reg.Save(e); err != nil {
		t.Fatal(err)
	}

	oracle := &fakeOracle{results: map[string]*metadata.Metadata{
		filepath.Join(canonicalDir, "Cargo.toml"): {
			Packages: []metadata.Package{{
				ID:           "id-app",
				Name:         "app",
				ManifestPath: filepath.Join(canonicalDir, "Cargo.toml"),
				Targets:      []metadata.Target{{Name: "app", Kind: []string{"bin"}}},
			}},
		},
	}}

	planStore := plans.NewStore(e)
	if err := planStore.AddStep("upgrade", domain.Step{Run: &domain.RunCommandStep{Command: "cargo", Args: []string{"update"}}}); err != nil {
		t.Fatal(err)
	}
	if err := planStore.AddStep("upgrade", domain.Step{Manual: &domain.ManualStep{Title: "review", Instructions: "check the diff"}}); err != nil {
		t.Fatal(err)
	}

	setStore := targetsets.NewStore(e)
	if err := setStore.Create("all-crates", domain.TargetSet{Crates: &domain.CrateFilter{}}); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		env:     e,
		manager: NewManager(e, resolver.New(oracle, logger), logger),
		plans:   planStore,
		sets:    setStore,
	}
}

func TestCreateLoad(t *testing.T) {
	f := newFixture(t)

	if err := f.manager.Create(context.Background(), "run1", "upgrade", "all-crates"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, file := range []string{"plan.toml", "target-set.toml", "resolved-target-set.toml"} {
		if _, err := os.Stat(filepath.Join(f.env.TaskDir("run1"), file)); err != nil {
			t.Errorf("snapshot file %s: %v", file, err)
		}
	}

	task, err := f.manager.Load("run1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if task.Name != "run1" {
		t.Errorf("task name = %q", task.Name)
	}
	if len(task.Plan.Steps) != 2 {
		t.Errorf("plan steps = %d, want 2", len(task.Plan.Steps))
	}
	if len(task.Resolved.Targets) != 1 {
		t.Errorf("resolved targets = %d, want 1", len(task.Resolved.Targets))
	}
}

func TestCreate_Collision(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.Create(context.Background(), "run1", "upgrade", "all-crates"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := f.manager.Create(context.Background(), "run1", "upgrade", "all-crates")
	var exists *AlreadyExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("expected AlreadyExistsError, got %v", err)
	}
}

func TestCreate_MissingReferences(t *testing.T) {
	f := newFixture(t)

	err := f.manager.Create(context.Background(), "run1", "no-such-plan", "all-crates")
	var planMissing *plans.NotFoundError
	if !errors.As(err, &planMissing) {
		t.Errorf("expected plans.NotFoundError, got %v", err)
	}

	err = f.manager.Create(context.Background(), "run1", "upgrade", "no-such-set")
	var setMissing *targetsets.NotFoundError
	if !errors.As(err, &setMissing) {
		t.Errorf("expected targetsets.NotFoundError, got %v", err)
	}
}

func TestSnapshotIsFrozen(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.Create(context.Background(), "run1", "upgrade", "all-crates"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Editing the plan after task creation must not change the task.
	if err := f.plans.AddStep("upgrade", domain.Step{Run: &domain.RunCommandStep{Command: "cargo", Args: []string{"test"}}}); err != nil {
		t.Fatalf("AddStep() error = %v", err)
	}

	task, err := f.manager.Load("run1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(task.Plan.Steps) != 2 {
		t.Errorf("frozen plan steps = %d, want 2", len(task.Plan.Steps))
	}
}

func TestRemove_DeletesStateSubtree(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.Create(context.Background(), "run1", "upgrade", "all-crates"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	stepState := f.env.StepStateDir("run1", 0, 1)
	if err := os.MkdirAll(stepState, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stepState, "exit_status"), []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := f.manager.Remove("run1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(f.env.TaskDir("run1")); !errors.Is(err, os.ErrNotExist) {
		t.Error("task dir still exists after remove")
	}
	if _, err := os.Stat(f.env.TaskStateDir("run1")); !errors.Is(err, os.ErrNotExist) {
		t.Error("task state subtree still exists after remove")
	}

	var notFound *NotFoundError
	if err := f.manager.Remove("run1"); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError for double remove, got %v", err)
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	names, err := f.manager.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no tasks, got %v", names)
	}

	for _, name := range []string{"zeta", "alpha"} {
		if err := f.manager.Create(context.Background(), name, "upgrade", "all-crates"); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	names, err = f.manager.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("names = %v", names)
	}
}
