// Package probe answers whether a named program could be launched. It is
// consulted before a run-command step is admitted into a plan and again
// before each execution.
package probe

import (
	"fmt"
	"os"
	"path/filepath"
)

// CommandNotFoundError reports a command that could not be found on the
// search path or is not executable.
type CommandNotFoundError struct {
	Command string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("command not found: %s", e.Command)
}

// Executable reports whether command is runnable: an absolute path must be
// an executable file itself, any other name is searched in pathDirs.
func Executable(command string, pathDirs []string) bool {
	if filepath.IsAbs(command) {
		return IsExecutableFile(command)
	}
	for _, dir := range pathDirs {
		if dir == "" {
			continue
		}
		if IsExecutableFile(filepath.Join(dir, command)) {
			return true
		}
	}
	return false
}

// IsExecutableFile reports whether path is a regular file with at least one
// execute bit set.
func IsExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
