// Package metadata wraps the external package-metadata oracle. Given a
// manifest path it returns the package graph reachable from it; callers
// never invoke cargo directly.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
)

// Metadata is the subset of the oracle output the tool consumes.
type Metadata struct {
	Packages         []Package `json:"packages"`
	WorkspaceMembers []string  `json:"workspace_members"`
	WorkspaceRoot    string    `json:"workspace_root"`
}

// Package is one package in the returned graph.
type Package struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ManifestPath string       `json:"manifest_path"`
	Dependencies []Dependency `json:"dependencies"`
	Targets      []Target     `json:"targets"`
}

// Dependency is a declared dependency, referenced by package name.
type Dependency struct {
	Name string `json:"name"`
}

// Target is one build target of a package.
type Target struct {
	Name string   `json:"name"`
	Kind []string `json:"kind"`
}

// Oracle is the query boundary. Query returns the full graph reachable
// from the manifest; QueryNoDeps returns only the workspace's own packages.
type Oracle interface {
	Query(ctx context.Context, manifestPath string) (*Metadata, error)
	QueryNoDeps(ctx context.Context, manifestPath string) (*Metadata, error)
}

// QueryError is a failed oracle invocation, surfaced with the manifest it
// was queried for.
type QueryError struct {
	ManifestPath string
	Err          error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("error running cargo metadata for %s: %v", e.ManifestPath, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// PackageNotFoundError reports a lookup miss in an oracle result.
type PackageNotFoundError struct {
	ManifestPath string
	PackageID    string
}

func (e *PackageNotFoundError) Error() string {
	if e.PackageID != "" {
		return fmt.Sprintf("cargo metadata did not include a package with the package id %s", e.PackageID)
	}
	return fmt.Sprintf("found no package with manifest_path matching %s in cargo metadata output", e.ManifestPath)
}

// PackageByID finds a package by its oracle identity.
func (m *Metadata) PackageByID(id string) (*Package, error) {
	for i := range m.Packages {
		if m.Packages[i].ID == id {
			return &m.Packages[i], nil
		}
	}
	return nil, &PackageNotFoundError{PackageID: id}
}

// PackageByManifestPath finds a package by the exact manifest path the
// oracle reported for it.
func (m *Metadata) PackageByManifestPath(path string) (*Package, error) {
	for i := range m.Packages {
		if m.Packages[i].ManifestPath == path {
			return &m.Packages[i], nil
		}
	}
	return nil, &PackageNotFoundError{ManifestPath: path}
}

// HasKind reports whether the package has at least one target of the given
// oracle kind.
func (p *Package) HasKind(kind string) bool {
	for _, t := range p.Targets {
		for _, k := range t.Kind {
			if k == kind {
				return true
			}
		}
	}
	return false
}

// CrateTypesOf classifies a package by its build-target kinds. Only bin,
// lib and proc-macro kinds are tracked; the order is stable.
func CrateTypesOf(p *Package) []domain.CrateType {
	var types []domain.CrateType
	if p.HasKind("bin") {
		types = append(types, domain.CrateTypeBin)
	}
	if p.HasKind("lib") {
		types = append(types, domain.CrateTypeLib)
	}
	if p.HasKind("proc-macro") {
		types = append(types, domain.CrateTypeProcMacro)
	}
	return types
}

func parseMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding cargo metadata output: %w", err)
	}
	return &m, nil
}
