package domain

import "errors"

// WorkspaceFilter selects registered workspaces.
type WorkspaceFilter struct {
	// NoStandalone excludes standalone-crate workspaces.
	NoStandalone bool `toml:"no_standalone"`
}

// CrateFilter selects registered crates. Nil fields do not constrain.
type CrateFilter struct {
	Type       *CrateType `toml:"type,omitempty"`
	Standalone *bool      `toml:"standalone,omitempty"`
}

// TargetSet is a stored filter over the registry. Exactly one variant is
// set; the TOML form carries a single [Workspaces] or [Crates] table.
type TargetSet struct {
	Workspaces *WorkspaceFilter `toml:"Workspaces,omitempty"`
	Crates     *CrateFilter     `toml:"Crates,omitempty"`
}

// ErrInvalidTargetSet is returned for documents that carry neither or both
// filter variants.
var ErrInvalidTargetSet = errors.New("target set must contain exactly one of Workspaces or Crates")

// Validate checks the one-variant invariant.
func (ts *TargetSet) Validate() error {
	if (ts.Workspaces == nil) == (ts.Crates == nil) {
		return ErrInvalidTargetSet
	}
	return nil
}

// MatchesWorkspace applies the workspace filter to one registry entry.
func (f *WorkspaceFilter) MatchesWorkspace(w Workspace) bool {
	return !f.NoStandalone || !w.IsStandalone
}

// MatchesCrate applies the crate filter to one registry entry. standalone
// maps workspace manifest dirs to their standalone flag; a crate whose
// workspace is unknown never matches a standalone constraint.
func (f *CrateFilter) MatchesCrate(c Crate, standalone map[string]bool) bool {
	if f.Type != nil && !c.HasType(*f.Type) {
		return false
	}
	if f.Standalone != nil {
		flag, known := standalone[c.WorkspaceManifestDir]
		if !known || flag != *f.Standalone {
			return false
		}
	}
	return true
}
