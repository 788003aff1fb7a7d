package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/metadata"
	"github.com/hochfrequenz/cargo-for-each/internal/registry"
)

var (
	targetAddManifest    string
	targetRemoveManifest string
	targetImportFile     string
	listNoStandalone     bool
	listCrateType        crateTypeValue
	listStandalone       bool
)

// crateTypeValue parses --type into a domain.CrateType. The zero value
// means the flag was not given.
type crateTypeValue struct {
	set  bool
	kind domain.CrateType
}

var _ pflag.Value = (*crateTypeValue)(nil)

func (v *crateTypeValue) String() string {
	if !v.set {
		return ""
	}
	return string(v.kind)
}

func (v *crateTypeValue) Set(s string) error {
	kind, err := domain.ParseCrateType(s)
	if err != nil {
		return err
	}
	v.kind = kind
	v.set = true
	return nil
}

func (v *crateTypeValue) Type() string { return "crate-type" }

func init() {
	targetCmd := &cobra.Command{
		Use:   "target",
		Short: "Manage the registry of workspaces and crates",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register the workspace owning a crate manifest, with all member crates",
		RunE:  runTargetAdd,
	}
	addCmd.Flags().StringVar(&targetAddManifest, "manifest-path", "", "path to a Cargo.toml")
	targetCmd.AddCommand(addCmd)

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a workspace and its crates from the registry",
		RunE:  runTargetRemove,
	}
	removeCmd.Flags().StringVar(&targetRemoveManifest, "manifest-path", "", "path to a Cargo.toml")
	targetCmd.AddCommand(removeCmd)

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Prune vanished manifests and pick up new member crates",
		RunE:  runTargetRefresh,
	}
	targetCmd.AddCommand(refreshCmd)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Register every manifest listed in a YAML file",
		RunE:  runTargetImport,
	}
	importCmd.Flags().StringVar(&targetImportFile, "file", "", "YAML file with a manifest_paths list")
	targetCmd.AddCommand(importCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered workspaces or crates",
	}

	listWorkspacesCmd := &cobra.Command{
		Use:   "workspaces",
		Short: "List registered workspaces",
		RunE:  runTargetListWorkspaces,
	}
	listWorkspacesCmd.Flags().BoolVar(&listNoStandalone, "no-standalone", false, "exclude standalone-crate workspaces")
	listCmd.AddCommand(listWorkspacesCmd)

	listCratesCmd := &cobra.Command{
		Use:   "crates",
		Short: "List registered crates",
		RunE:  runTargetListCrates,
	}
	listCratesCmd.Flags().Var(&listCrateType, "type", "only crates with this build-target type (bin, lib, proc-macro)")
	listCratesCmd.Flags().BoolVar(&listStandalone, "standalone", false, "only crates whose workspace is (not) standalone")
	listCmd.AddCommand(listCratesCmd)

	targetCmd.AddCommand(listCmd)
	rootCmd.AddCommand(targetCmd)
}

func newRegistryManager(e env.Environment) *registry.Manager {
	oracle := metadata.NewCargoOracle(slog.Default())
	return registry.NewManager(e, oracle, slog.Default())
}

func runTargetAdd(cmd *cobra.Command, _ []string) error {
	if targetAddManifest == "" {
		return fmt.Errorf("--manifest-path is required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	return newRegistryManager(e).Add(cmd.Context(), targetAddManifest)
}

func runTargetRemove(cmd *cobra.Command, _ []string) error {
	if targetRemoveManifest == "" {
		return fmt.Errorf("--manifest-path is required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	return newRegistryManager(e).Remove(cmd.Context(), targetRemoveManifest)
}

func runTargetRefresh(cmd *cobra.Command, _ []string) error {
	e, err := env.Detect()
	if err != nil {
		return err
	}
	return newRegistryManager(e).Refresh(cmd.Context())
}

func runTargetImport(cmd *cobra.Command, _ []string) error {
	if targetImportFile == "" {
		return fmt.Errorf("--file is required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	return newRegistryManager(e).Import(cmd.Context(), targetImportFile)
}

// loadRegistryForListing mirrors the listing behavior for a fresh setup: a
// missing registry file is not an error, there is just nothing to show.
func loadRegistryForListing(e env.Environment) (*registry.Registry, bool, error) {
	if _, err := os.Stat(e.ConfigFile()); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "No config file found, nothing to list")
		return nil, false, nil
	}
	reg, err := registry.Load(e)
	if err != nil {
		return nil, false, err
	}
	return reg, true, nil
}

func runTargetListWorkspaces(_ *cobra.Command, _ []string) error {
	e, err := env.Detect()
	if err != nil {
		return err
	}
	reg, ok, err := loadRegistryForListing(e)
	if err != nil || !ok {
		return err
	}
	filter := domain.WorkspaceFilter{NoStandalone: listNoStandalone}
	for _, w := range reg.Workspaces {
		if !filter.MatchesWorkspace(w) {
			continue
		}
		fmt.Printf("%s (standalone: %t)\n", w.ManifestDir, w.IsStandalone)
	}
	return nil
}

func runTargetListCrates(cmd *cobra.Command, _ []string) error {
	e, err := env.Detect()
	if err != nil {
		return err
	}
	reg, ok, err := loadRegistryForListing(e)
	if err != nil || !ok {
		return err
	}

	var filter domain.CrateFilter
	if listCrateType.set {
		filter.Type = &listCrateType.kind
	}
	if cmd.Flags().Changed("standalone") {
		v := listStandalone
		filter.Standalone = &v
	}

	standalone := reg.StandaloneByWorkspaceDir()
	for _, c := range reg.Crates {
		if !filter.MatchesCrate(c, standalone) {
			continue
		}
		if c.ManifestDir == c.WorkspaceManifestDir {
			fmt.Printf("%s (types: %s)\n", c.ManifestDir, formatTypes(c.Types))
		} else {
			fmt.Printf("%s (workspace: %s, types: %s)\n", c.ManifestDir, c.WorkspaceManifestDir, formatTypes(c.Types))
		}
	}
	return nil
}

// formatTypes renders crate types the way listings show them: [Lib, Bin].
func formatTypes(types []domain.CrateType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
