//go:build integration

package integration

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// binaryPath returns the path to the built CLI binary
func binaryPath(t *testing.T) string {
	t.Helper()
	// Look for the binary in common locations
	paths := []string{
		"../cargo-for-each",
		"./cargo-for-each",
		filepath.Join(os.Getenv("GOPATH"), "bin", "cargo-for-each"),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			abs, _ := filepath.Abs(p)
			return abs
		}
	}

	// Try to build it
	t.Log("Binary not found, building...")
	cmd := exec.Command("go", "build", "-o", "../cargo-for-each", "../cmd/cargo-for-each")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}

	abs, _ := filepath.Abs("../cargo-for-each")
	return abs
}

// cliEnv gives each test an isolated config and state home.
type cliEnv struct {
	bin    string
	config string
	state  string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{
		bin:    binaryPath(t),
		config: t.TempDir(),
		state:  t.TempDir(),
	}
}

// run executes the CLI and fails the test on a non-zero exit.
func (c *cliEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := c.tryRun(args...)
	if err != nil {
		t.Fatalf("cargo-for-each %s: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return stdout
}

// tryRun executes the CLI and returns stdout, stderr and the exit error.
func (c *cliEnv) tryRun(args ...string) (string, string, error) {
	cmd := exec.Command(c.bin, args...)
	cmd.Env = append(os.Environ(),
		"XDG_CONFIG_HOME="+c.config,
		"XDG_STATE_HOME="+c.state,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
