// Package domain holds the core value types shared across the tool:
// the registry entries (workspaces and crates), target-set filters,
// resolved targets, and plan steps. Everything here is plain data with
// TOML wire shapes; behavior lives in the packages that consume it.
package domain

import (
	"fmt"
	"slices"
	"strings"
)

// ValidateDocumentName rejects names that cannot serve as file or
// directory names under the document stores.
func ValidateDocumentName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid document name %q", name)
	}
	return nil
}

// CrateType classifies a crate by its build targets.
type CrateType string

const (
	CrateTypeBin       CrateType = "Bin"
	CrateTypeLib       CrateType = "Lib"
	CrateTypeProcMacro CrateType = "ProcMacro"
)

// ParseCrateType accepts the CLI spellings (bin, lib, proc-macro) as well
// as the canonical stored form.
func ParseCrateType(s string) (CrateType, error) {
	switch s {
	case "bin", "Bin":
		return CrateTypeBin, nil
	case "lib", "Lib":
		return CrateTypeLib, nil
	case "proc-macro", "ProcMacro":
		return CrateTypeProcMacro, nil
	}
	return "", fmt.Errorf("unknown crate type %q (expected bin, lib or proc-macro)", s)
}

// Workspace is a registered workspace root.
type Workspace struct {
	// ManifestDir is the directory containing the workspace Cargo.toml.
	ManifestDir string `toml:"manifest_dir"`
	// IsStandalone marks a workspace whose single crate manifest is the
	// workspace root itself.
	IsStandalone bool `toml:"is_standalone"`
}

// Crate is a registered crate. WorkspaceManifestDir is a back-reference to
// its workspace, not ownership.
type Crate struct {
	ManifestDir          string      `toml:"manifest_dir"`
	WorkspaceManifestDir string      `toml:"workspace_manifest_dir"`
	Types                []CrateType `toml:"types"`
}

// HasType reports whether the crate has the given build-target type.
func (c Crate) HasType(t CrateType) bool {
	return slices.Contains(c.Types, t)
}

// Target is one node of a resolved target set. Dependencies only lists
// manifest dirs that are themselves members of the same set.
type Target struct {
	ManifestDir  string   `toml:"manifest_dir"`
	Dependencies []string `toml:"dependencies"`
}

// ResolvedTargetSet is the ordered output of resolving a target-set filter
// against the registry. Order is candidate order, not topological order.
type ResolvedTargetSet struct {
	Targets []Target `toml:"targets"`
}

// IndexByDir maps each target's manifest dir to its position in the set.
func (r *ResolvedTargetSet) IndexByDir() map[string]int {
	idx := make(map[string]int, len(r.Targets))
	for i, t := range r.Targets {
		idx[t.ManifestDir] = i
	}
	return idx
}
