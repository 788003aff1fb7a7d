package metadata

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
)

// CargoOracle queries package metadata by invoking the cargo binary.
type CargoOracle struct {
	// Cargo is the binary to invoke, resolved through PATH.
	Cargo  string
	Logger *slog.Logger
}

// NewCargoOracle returns an oracle backed by the cargo binary on PATH.
func NewCargoOracle(logger *slog.Logger) *CargoOracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &CargoOracle{Cargo: "cargo", Logger: logger}
}

// Query runs `cargo metadata` for the manifest and decodes the result.
func (o *CargoOracle) Query(ctx context.Context, manifestPath string) (*Metadata, error) {
	return o.run(ctx, manifestPath, false)
}

// QueryNoDeps is Query restricted to the workspace's own packages. It is
// cheaper and sufficient when dependency edges are not needed.
func (o *CargoOracle) QueryNoDeps(ctx context.Context, manifestPath string) (*Metadata, error) {
	return o.run(ctx, manifestPath, true)
}

func (o *CargoOracle) run(ctx context.Context, manifestPath string, noDeps bool) (*Metadata, error) {
	args := []string{"metadata", "--format-version", "1", "--manifest-path", manifestPath}
	if noDeps {
		args = append(args, "--no-deps")
	}
	o.Logger.Debug("querying cargo metadata", "manifest_path", manifestPath, "no_deps", noDeps)

	cmd := exec.CommandContext(ctx, o.Cargo, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, &QueryError{
				ManifestPath: manifestPath,
				Err:          errors.New(strings.TrimSpace(string(exitErr.Stderr))),
			}
		}
		return nil, &QueryError{ManifestPath: manifestPath, Err: err}
	}

	m, err := parseMetadata(out)
	if err != nil {
		return nil, &QueryError{ManifestPath: manifestPath, Err: err}
	}
	return m, nil
}
