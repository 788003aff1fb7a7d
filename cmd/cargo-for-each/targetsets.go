package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/targetsets"
)

var (
	setName         string
	setRemoveName   string
	setNoStandalone bool
	setCrateType    crateTypeValue
	setStandalone   bool
)

func init() {
	targetSetCmd := &cobra.Command{
		Use:   "target-set",
		Short: "Manage stored target-set filters",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Store a new target-set filter",
	}
	createCmd.PersistentFlags().StringVar(&setName, "name", "", "name of the target set")

	createWorkspacesCmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Filter selecting registered workspaces",
		RunE:  runTargetSetCreateWorkspaces,
	}
	createWorkspacesCmd.Flags().BoolVar(&setNoStandalone, "no-standalone", false, "exclude standalone-crate workspaces")
	createCmd.AddCommand(createWorkspacesCmd)

	createCratesCmd := &cobra.Command{
		Use:   "crates",
		Short: "Filter selecting registered crates",
		RunE:  runTargetSetCreateCrates,
	}
	createCratesCmd.Flags().Var(&setCrateType, "type", "only crates with this build-target type (bin, lib, proc-macro)")
	createCratesCmd.Flags().BoolVar(&setStandalone, "standalone", false, "only crates whose workspace is (not) standalone")
	createCmd.AddCommand(createCratesCmd)

	targetSetCmd.AddCommand(createCmd)

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete a stored target set",
		RunE:  runTargetSetRemove,
	}
	removeCmd.Flags().StringVar(&setRemoveName, "name", "", "name of the target set")
	targetSetCmd.AddCommand(removeCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored target sets with their documents",
		RunE:  runTargetSetList,
	}
	targetSetCmd.AddCommand(listCmd)

	rootCmd.AddCommand(targetSetCmd)
}

func createTargetSet(set domain.TargetSet) error {
	if setName == "" {
		return fmt.Errorf("--name is required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	return targetsets.NewStore(e).Create(setName, set)
}

func runTargetSetCreateWorkspaces(_ *cobra.Command, _ []string) error {
	return createTargetSet(domain.TargetSet{
		Workspaces: &domain.WorkspaceFilter{NoStandalone: setNoStandalone},
	})
}

func runTargetSetCreateCrates(cmd *cobra.Command, _ []string) error {
	var filter domain.CrateFilter
	if setCrateType.set {
		filter.Type = &setCrateType.kind
	}
	if cmd.Flags().Changed("standalone") {
		v := setStandalone
		filter.Standalone = &v
	}
	return createTargetSet(domain.TargetSet{Crates: &filter})
}

func runTargetSetRemove(_ *cobra.Command, _ []string) error {
	if setRemoveName == "" {
		return fmt.Errorf("--name is required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	return targetsets.NewStore(e).Remove(setRemoveName)
}

func runTargetSetList(_ *cobra.Command, _ []string) error {
	e, err := env.Detect()
	if err != nil {
		return err
	}
	entries, err := targetsets.NewStore(e).List()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Println(entry.Name)
		fmt.Println(entry.Content)
	}
	return nil
}
