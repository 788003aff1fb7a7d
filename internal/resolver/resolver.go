// Package resolver turns a stored target-set filter into the concrete,
// ordered list of targets with their in-set dependency edges. The result
// is what gets frozen into a task snapshot.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/metadata"
	"github.com/hochfrequenz/cargo-for-each/internal/registry"
)

// Resolver resolves target sets against the registry through the metadata
// oracle.
type Resolver struct {
	oracle metadata.Oracle
	logger *slog.Logger
}

// New wires a resolver.
func New(oracle metadata.Oracle, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{oracle: oracle, logger: logger}
}

// NoPackageForTargetError reports that resolution could not match a target
// directory to any package in the collected metadata.
type NoPackageForTargetError struct {
	ManifestDir string
}

func (e *NoPackageForTargetError) Error() string {
	return fmt.Sprintf("found no package in cargo metadata for target directory %s", e.ManifestDir)
}

// Resolve applies the filter to the registry, queries metadata for every
// selected directory and restricts each target's declared dependencies to
// directories that are themselves in the set. Target order follows
// registry order; dependency edges never reach outside the set.
func (r *Resolver) Resolve(ctx context.Context, set domain.TargetSet, reg *registry.Registry) (*domain.ResolvedTargetSet, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	initialDirs := initialManifestDirs(set, reg)
	inSet := make(map[string]struct{}, len(initialDirs))
	for _, dir := range initialDirs {
		inSet[dir] = struct{}{}
	}

	// One shared index across all queries. Name collisions keep the
	// package seen last; dependency restriction to the set keeps the
	// consequences contained.
	allPackages := make(map[string]metadata.Package)
	nameToID := make(map[string]string)
	for _, dir := range initialDirs {
		meta, err := r.oracle.Query(ctx, filepath.Join(dir, "Cargo.toml"))
		if err != nil {
			return nil, err
		}
		for _, pkg := range meta.Packages {
			allPackages[pkg.ID] = pkg
			if prev, ok := nameToID[pkg.Name]; ok && prev != pkg.ID {
				r.logger.Debug("package name maps to multiple packages, keeping the latest",
					"name", pkg.Name, "previous_id", prev, "id", pkg.ID)
			}
			nameToID[pkg.Name] = pkg.ID
		}
	}

	targets := make([]domain.Target, 0, len(initialDirs))
	for _, dir := range initialDirs {
		pkg, err := packageForDir(dir, allPackages)
		if err != nil {
			return nil, err
		}

		var dependencies []string
		for _, dep := range pkg.Dependencies {
			id, ok := nameToID[dep.Name]
			if !ok {
				continue
			}
			depPkg, ok := allPackages[id]
			if !ok {
				continue
			}
			depDir, err := env.ParentDir(depPkg.ManifestPath)
			if err != nil {
				return nil, err
			}
			canonicalDepDir, err := env.Canonicalize(depDir)
			if err != nil {
				return nil, err
			}
			if _, ok := inSet[canonicalDepDir]; ok {
				dependencies = append(dependencies, canonicalDepDir)
			}
		}

		targets = append(targets, domain.Target{ManifestDir: dir, Dependencies: dependencies})
	}

	return &domain.ResolvedTargetSet{Targets: targets}, nil
}

// initialManifestDirs applies the filter to the registry, preserving
// registry order.
func initialManifestDirs(set domain.TargetSet, reg *registry.Registry) []string {
	var dirs []string
	switch {
	case set.Workspaces != nil:
		for _, w := range reg.Workspaces {
			if set.Workspaces.MatchesWorkspace(w) {
				dirs = append(dirs, w.ManifestDir)
			}
		}
	case set.Crates != nil:
		standalone := reg.StandaloneByWorkspaceDir()
		for _, c := range reg.Crates {
			if set.Crates.MatchesCrate(c, standalone) {
				dirs = append(dirs, c.ManifestDir)
			}
		}
	}
	return dirs
}

// packageForDir finds the package whose manifest parent matches the target
// directory. Both sides are canonicalized before comparison; packages
// whose paths cannot be canonicalized are skipped.
func packageForDir(dir string, allPackages map[string]metadata.Package) (metadata.Package, error) {
	canonicalDir, dirErr := env.Canonicalize(dir)
	for _, pkg := range allPackages {
		parent, err := env.ParentDir(pkg.ManifestPath)
		if err != nil {
			continue
		}
		canonicalParent, err := env.Canonicalize(parent)
		if err != nil {
			continue
		}
		if dirErr == nil && canonicalParent == canonicalDir {
			return pkg, nil
		}
	}
	return metadata.Package{}, &NoPackageForTargetError{ManifestDir: dir}
}
