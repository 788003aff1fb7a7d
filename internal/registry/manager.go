package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/metadata"
)

// Manager mutates the registry through the metadata oracle.
type Manager struct {
	env    env.Environment
	oracle metadata.Oracle
	logger *slog.Logger
}

// NewManager wires a registry manager.
func NewManager(e env.Environment, oracle metadata.Oracle, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{env: e, oracle: oracle, logger: logger}
}

// Add registers the workspace containing the given manifest. A workspace
// manifest registers every member crate; a standalone crate registers as a
// single-crate workspace.
func (m *Manager) Add(ctx context.Context, manifestPath string) error {
	reg, err := Load(m.env)
	if err != nil {
		return err
	}

	canonical, err := env.Canonicalize(manifestPath)
	if err != nil {
		return err
	}

	// The initial query locates the workspace root; membership is then
	// read from a query rooted at the workspace manifest itself.
	initial, err := m.oracle.Query(ctx, canonical)
	if err != nil {
		return err
	}
	workspaceManifest := filepath.Join(initial.WorkspaceRoot, "Cargo.toml")
	workspaceDir, err := env.ParentDir(workspaceManifest)
	if err != nil {
		return err
	}

	wsMeta, err := m.oracle.Query(ctx, workspaceManifest)
	if err != nil {
		return err
	}

	standalone := false
	if len(wsMeta.WorkspaceMembers) == 1 {
		pkg, err := wsMeta.PackageByID(wsMeta.WorkspaceMembers[0])
		if err != nil {
			return err
		}
		standalone = pkg.ManifestPath == workspaceManifest
	}

	if standalone {
		m.logger.Debug("identified manifest as standalone crate", "manifest_dir", workspaceDir)
		pkg, err := wsMeta.PackageByManifestPath(workspaceManifest)
		if err != nil {
			return err
		}
		m.addWorkspace(reg, domain.Workspace{ManifestDir: workspaceDir, IsStandalone: true})
		m.addCrate(reg, domain.Crate{
			ManifestDir:          workspaceDir,
			WorkspaceManifestDir: workspaceDir,
			Types:                metadata.CrateTypesOf(pkg),
		})
	} else {
		m.logger.Debug("identified manifest as workspace", "manifest_dir", workspaceDir)
		m.addWorkspace(reg, domain.Workspace{ManifestDir: workspaceDir, IsStandalone: false})
		for _, id := range wsMeta.WorkspaceMembers {
			pkg, err := wsMeta.PackageByID(id)
			if err != nil {
				return err
			}
			crateDir, err := env.ParentDir(pkg.ManifestPath)
			if err != nil {
				return err
			}
			m.addCrate(reg, domain.Crate{
				ManifestDir:          crateDir,
				WorkspaceManifestDir: workspaceDir,
				Types:                metadata.CrateTypesOf(pkg),
			})
		}
	}

	return reg.Save(m.env)
}

// Remove drops the workspace registered at the given path along with every
// crate belonging to it.
func (m *Manager) Remove(ctx context.Context, manifestPath string) error {
	reg, err := Load(m.env)
	if err != nil {
		return err
	}

	canonical, err := env.Canonicalize(manifestPath)
	if err != nil {
		return err
	}

	var workspaces []domain.Workspace
	for _, w := range reg.Workspaces {
		if w.ManifestDir == canonical {
			continue
		}
		workspaces = append(workspaces, w)
	}
	if len(workspaces) < len(reg.Workspaces) {
		m.logger.Debug("removed workspace", "manifest_dir", canonical)
	} else {
		m.logger.Warn("no workspace registered at path", "manifest_dir", canonical)
	}
	reg.Workspaces = workspaces

	var crates []domain.Crate
	for _, c := range reg.Crates {
		if c.ManifestDir == canonical || c.WorkspaceManifestDir == canonical {
			continue
		}
		crates = append(crates, c)
	}
	if len(crates) < len(reg.Crates) {
		m.logger.Debug("removed crates", "manifest_dir", canonical)
	} else {
		m.logger.Warn("no crates registered at path", "manifest_dir", canonical)
	}
	reg.Crates = crates

	return reg.Save(m.env)
}

// Refresh reconciles the registry with the filesystem. Entries whose
// manifest is gone are pruned, workspaces are re-scanned for new member
// crates, and every crate's type set is re-derived.
func (m *Manager) Refresh(ctx context.Context) error {
	reg, err := Load(m.env)
	if err != nil {
		return err
	}

	var workspaces []domain.Workspace
	for _, w := range reg.Workspaces {
		if isFile(filepath.Join(w.ManifestDir, "Cargo.toml")) {
			workspaces = append(workspaces, w)
			continue
		}
		m.logger.Debug("pruning workspace, manifest is gone", "manifest_dir", w.ManifestDir)
	}
	reg.Workspaces = workspaces

	var crates []domain.Crate
	for _, c := range reg.Crates {
		if isFile(filepath.Join(c.ManifestDir, "Cargo.toml")) {
			crates = append(crates, c)
			continue
		}
		m.logger.Debug("pruning crate, manifest is gone", "manifest_dir", c.ManifestDir)
	}
	reg.Crates = crates

	for _, w := range reg.Workspaces {
		manifest := filepath.Join(w.ManifestDir, "Cargo.toml")
		meta, err := m.oracle.Query(ctx, manifest)
		if err != nil {
			return err
		}
		for _, id := range meta.WorkspaceMembers {
			pkg, err := meta.PackageByID(id)
			if err != nil {
				return err
			}
			crateDir, err := env.ParentDir(pkg.ManifestPath)
			if err != nil {
				continue
			}
			if reg.HasCrate(crateDir) {
				continue
			}
			m.addCrate(reg, domain.Crate{
				ManifestDir:          crateDir,
				WorkspaceManifestDir: w.ManifestDir,
				Types:                metadata.CrateTypesOf(pkg),
			})
		}
	}

	for i := range reg.Crates {
		manifest := filepath.Join(reg.Crates[i].ManifestDir, "Cargo.toml")
		meta, err := m.oracle.QueryNoDeps(ctx, manifest)
		if err != nil {
			return err
		}
		pkg, err := meta.PackageByManifestPath(manifest)
		if err != nil {
			m.logger.Warn("no package found for manifest during refresh", "manifest_path", manifest)
			continue
		}
		types := metadata.CrateTypesOf(pkg)
		if !slices.Equal(reg.Crates[i].Types, types) {
			m.logger.Debug("updating crate types",
				"manifest_dir", reg.Crates[i].ManifestDir,
				"old", reg.Crates[i].Types,
				"new", types)
			reg.Crates[i].Types = types
		}
	}

	return reg.Save(m.env)
}

type importDocument struct {
	ManifestPaths []string `yaml:"manifest_paths"`
}

// Import reads a YAML document listing manifest paths and runs the add
// flow for each entry.
func (m *Manager) Import(ctx context.Context, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}
	var doc importDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing import file %s: %w", file, err)
	}
	if len(doc.ManifestPaths) == 0 {
		return fmt.Errorf("import file %s lists no manifest paths", file)
	}
	for _, p := range doc.ManifestPaths {
		if err := m.Add(ctx, p); err != nil {
			return fmt.Errorf("importing %s: %w", p, err)
		}
	}
	return nil
}

func (m *Manager) addWorkspace(reg *Registry, w domain.Workspace) {
	if reg.AddWorkspace(w) {
		m.logger.Debug("registering workspace", "manifest_dir", w.ManifestDir)
	} else {
		m.logger.Debug("workspace already registered", "manifest_dir", w.ManifestDir)
	}
}

func (m *Manager) addCrate(reg *Registry, c domain.Crate) {
	if reg.AddCrate(c) {
		m.logger.Debug("registering crate", "manifest_dir", c.ManifestDir)
	} else {
		m.logger.Debug("crate already registered", "manifest_dir", c.ManifestDir)
	}
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
