package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/cargo-for-each/internal/updater"
)

// version is overridden at release time via -ldflags "-X main.version=v0.2.1".
var version = "dev"

func init() {
	rootCmd.Version = version

	selfUpdateCmd := &cobra.Command{
		Use:   "self-update",
		Short: "Replace this binary with the latest released version",
		RunE:  runSelfUpdate,
	}
	rootCmd.AddCommand(selfUpdateCmd)
}

func runSelfUpdate(_ *cobra.Command, _ []string) error {
	latest, err := updater.CheckLatestVersion()
	if err != nil {
		return err
	}
	if !updater.NeedsUpdate(version, latest) {
		fmt.Printf("cargo-for-each %s is up to date.\n", version)
		return nil
	}
	fmt.Printf("Updating from %s to %s\n", version, latest)
	if err := updater.SelfUpdate(latest); err != nil {
		return err
	}
	fmt.Printf("Updated to %s.\n", latest)
	return nil
}
