// Package env resolves where cargo-for-each keeps its documents and
// execution state. The Environment value is constructed once and passed
// into every component that touches the filesystem, so tests can point
// the whole tool at temporary directories.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const appDir = "cargo-for-each"

// Environment carries the resolved directory roots and the executable
// search path.
type Environment struct {
	// ConfigRoot is the user config base, e.g. ~/.config.
	ConfigRoot string
	// StateRoot is the user state base, e.g. ~/.local/state.
	StateRoot string
	// PathDirs is the split PATH used by the executable probe.
	PathDirs []string
}

// Detect builds the Environment from the process environment.
func Detect() (Environment, error) {
	configRoot, err := os.UserConfigDir()
	if err != nil {
		return Environment{}, fmt.Errorf("determining user config dir: %w", err)
	}

	stateRoot := os.Getenv("XDG_STATE_HOME")
	if stateRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Environment{}, fmt.Errorf("determining user state dir: %w", err)
		}
		stateRoot = filepath.Join(home, ".local", "state")
	}

	return Environment{
		ConfigRoot: configRoot,
		StateRoot:  stateRoot,
		PathDirs:   filepath.SplitList(os.Getenv("PATH")),
	}, nil
}

// ConfigDir is the root of all persisted documents.
func (e Environment) ConfigDir() string {
	return filepath.Join(e.ConfigRoot, appDir)
}

// ConfigFile is the registry document path.
func (e Environment) ConfigFile() string {
	return filepath.Join(e.ConfigDir(), "cargo-for-each.toml")
}

// TargetSetsDir holds one TOML document per named target set.
func (e Environment) TargetSetsDir() string {
	return filepath.Join(e.ConfigDir(), "target-sets")
}

// PlansDir holds one TOML document per named plan.
func (e Environment) PlansDir() string {
	return filepath.Join(e.ConfigDir(), "plans")
}

// TasksDir holds one directory per named task.
func (e Environment) TasksDir() string {
	return filepath.Join(e.ConfigDir(), "tasks")
}

// TaskDir is the frozen snapshot directory of one task.
func (e Environment) TaskDir(name string) string {
	return filepath.Join(e.TasksDir(), name)
}

// StateDir is the root of all execution state.
func (e Environment) StateDir() string {
	return filepath.Join(e.StateRoot, appDir)
}

// TaskStateDir is the execution-state subtree of one task.
func (e Environment) TaskStateDir(task string) string {
	return filepath.Join(e.StateDir(), "tasks", task)
}

// StepStateDir is the per-(target, step) state directory. Target indices
// are 0-based, step indices 1-based; the path segments record them as-is.
func (e Environment) StepStateDir(task string, targetIdx, stepIdx int) string {
	return filepath.Join(e.TaskStateDir(task), strconv.Itoa(targetIdx), strconv.Itoa(stepIdx))
}

// JournalPath is the sqlite journal of step attempts.
func (e Environment) JournalPath() string {
	return filepath.Join(e.StateDir(), "journal.db")
}

// Canonicalize makes a path absolute and resolves symlinks. Registry
// entries and resolved targets store canonical paths so that equality is
// string equality.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("canonicalizing %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("canonicalizing %s: %w", path, err)
	}
	return resolved, nil
}

// ParentDir returns the parent directory of a path, failing on paths that
// have none, such as the filesystem root.
func ParentDir(path string) (string, error) {
	dir := filepath.Dir(path)
	if dir == path {
		return "", fmt.Errorf("path %s has no parent directory", path)
	}
	return dir, nil
}
