// Package registry persists the set of workspaces and crates the tool
// manages. The registry document lives at the config root and is the raw
// material target sets are resolved against.
package registry

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
)

// Registry is the persisted document listing every known workspace and
// crate.
type Registry struct {
	Workspaces []domain.Workspace `toml:"workspaces,omitempty"`
	Crates     []domain.Crate     `toml:"crates,omitempty"`
}

// Load reads the registry document. A missing file yields an empty
// registry, not an error.
func Load(e env.Environment) (*Registry, error) {
	data, err := os.ReadFile(e.ConfigFile())
	if errors.Is(err, os.ErrNotExist) {
		return &Registry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	var r Registry
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing registry file %s: %w", e.ConfigFile(), err)
	}
	return &r, nil
}

// Save writes the registry document, creating the config directory first.
func (r *Registry) Save(e env.Environment) error {
	if err := os.MkdirAll(e.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(r)
	if err != nil {
		return fmt.Errorf("serializing registry: %w", err)
	}
	if err := os.WriteFile(e.ConfigFile(), data, 0o644); err != nil {
		return fmt.Errorf("writing registry file: %w", err)
	}
	return nil
}

// AddWorkspace inserts a workspace unless one with the same manifest dir
// already exists. It reports whether the workspace was added.
func (r *Registry) AddWorkspace(w domain.Workspace) bool {
	for _, existing := range r.Workspaces {
		if existing.ManifestDir == w.ManifestDir {
			return false
		}
	}
	r.Workspaces = append(r.Workspaces, w)
	return true
}

// AddCrate inserts a crate unless one with the same manifest dir already
// exists. It reports whether the crate was added.
func (r *Registry) AddCrate(c domain.Crate) bool {
	for _, existing := range r.Crates {
		if existing.ManifestDir == c.ManifestDir {
			return false
		}
	}
	r.Crates = append(r.Crates, c)
	return true
}

// HasCrate reports whether a crate with the given manifest dir is
// registered.
func (r *Registry) HasCrate(manifestDir string) bool {
	for _, c := range r.Crates {
		if c.ManifestDir == manifestDir {
			return true
		}
	}
	return false
}

// StandaloneByWorkspaceDir maps each workspace manifest dir to its
// standalone flag, the shape the crate filters match against.
func (r *Registry) StandaloneByWorkspaceDir() map[string]bool {
	m := make(map[string]bool, len(r.Workspaces))
	for _, w := range r.Workspaces {
		m[w.ManifestDir] = w.IsStandalone
	}
	return m
}
