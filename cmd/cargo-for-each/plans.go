package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/cargo-for-each/internal/domain"
	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/plans"
)

var (
	planCreateName     string
	planDeleteName     string
	stepPlanName       string
	stepInsertPosition int
	stepRemovePosition int
)

func init() {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage step plans",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty plan",
		RunE:  runPlanCreate,
	}
	createCmd.Flags().StringVar(&planCreateName, "name", "", "name of the plan")
	planCmd.AddCommand(createCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a plan",
		RunE:  runPlanDelete,
	}
	deleteCmd.Flags().StringVar(&planDeleteName, "name", "", "name of the plan")
	planCmd.AddCommand(deleteCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List plan names",
		RunE:  runPlanList,
	}
	planCmd.AddCommand(listCmd)

	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Edit the steps of a plan",
	}
	stepCmd.PersistentFlags().StringVar(&stepPlanName, "name", "", "name of the plan")

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Append a step to a plan",
	}
	addCmd.AddCommand(&cobra.Command{
		Use:   "run-command CMD [-- ARGS...]",
		Short: "Step that runs a command in each target directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return addPlanStep(runStepFromArgs(args))
		},
	})
	addCmd.AddCommand(&cobra.Command{
		Use:   "manual-step TITLE INSTRUCTIONS",
		Short: "Step that asks the operator to do work by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return addPlanStep(manualStepFromArgs(args))
		},
	})
	stepCmd.AddCommand(addCmd)

	insertCmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a step at a 1-based position",
	}
	insertCmd.PersistentFlags().IntVar(&stepInsertPosition, "position", 0, "1-based position of the new step")
	insertCmd.AddCommand(&cobra.Command{
		Use:   "run-command CMD [-- ARGS...]",
		Short: "Step that runs a command in each target directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return insertPlanStep(runStepFromArgs(args))
		},
	})
	insertCmd.AddCommand(&cobra.Command{
		Use:   "manual-step TITLE INSTRUCTIONS",
		Short: "Step that asks the operator to do work by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return insertPlanStep(manualStepFromArgs(args))
		},
	})
	stepCmd.AddCommand(insertCmd)

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove the step at a 1-based position",
		RunE:  runPlanStepRemove,
	}
	removeCmd.Flags().IntVar(&stepRemovePosition, "position", 0, "1-based position of the step to remove")
	stepCmd.AddCommand(removeCmd)

	stepListCmd := &cobra.Command{
		Use:   "list",
		Short: "List the steps of a plan",
		RunE:  runPlanStepList,
	}
	stepCmd.AddCommand(stepListCmd)

	planCmd.AddCommand(stepCmd)
	rootCmd.AddCommand(planCmd)
}

func runStepFromArgs(args []string) domain.Step {
	return domain.Step{Run: &domain.RunCommandStep{Command: args[0], Args: args[1:]}}
}

func manualStepFromArgs(args []string) domain.Step {
	return domain.Step{Manual: &domain.ManualStep{Title: args[0], Instructions: args[1]}}
}

func planStore() (*plans.Store, error) {
	e, err := env.Detect()
	if err != nil {
		return nil, err
	}
	return plans.NewStore(e), nil
}

func runPlanCreate(_ *cobra.Command, _ []string) error {
	if planCreateName == "" {
		return fmt.Errorf("--name is required")
	}
	store, err := planStore()
	if err != nil {
		return err
	}
	return store.Create(planCreateName)
}

func runPlanDelete(_ *cobra.Command, _ []string) error {
	if planDeleteName == "" {
		return fmt.Errorf("--name is required")
	}
	store, err := planStore()
	if err != nil {
		return err
	}
	return store.Delete(planDeleteName)
}

func runPlanList(_ *cobra.Command, _ []string) error {
	store, err := planStore()
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func addPlanStep(step domain.Step) error {
	if stepPlanName == "" {
		return fmt.Errorf("--name is required")
	}
	store, err := planStore()
	if err != nil {
		return err
	}
	return store.AddStep(stepPlanName, step)
}

func insertPlanStep(step domain.Step) error {
	if stepPlanName == "" {
		return fmt.Errorf("--name is required")
	}
	store, err := planStore()
	if err != nil {
		return err
	}
	return store.InsertStep(stepPlanName, stepInsertPosition, step)
}

func runPlanStepRemove(_ *cobra.Command, _ []string) error {
	if stepPlanName == "" {
		return fmt.Errorf("--name is required")
	}
	store, err := planStore()
	if err != nil {
		return err
	}
	return store.RemoveStep(stepPlanName, stepRemovePosition)
}

func runPlanStepList(_ *cobra.Command, _ []string) error {
	if stepPlanName == "" {
		return fmt.Errorf("--name is required")
	}
	store, err := planStore()
	if err != nil {
		return err
	}
	plan, err := store.Load(stepPlanName)
	if err != nil {
		return err
	}
	for i, step := range plan.Steps {
		fmt.Printf("%d: %s\n", i+1, step.Describe())
	}
	return nil
}
