package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/cargo-for-each/internal/logging"
)

var (
	closeLogs func() error
	rootCmd   = &cobra.Command{
		Use:   "cargo-for-each",
		Short: "Run step plans across a fleet of Rust workspaces and crates",
		Long: `cargo-for-each keeps a registry of Rust workspaces and crates, resolves
declarative target sets against it, and runs step plans on every resolved
target in dependency order. Completed steps are persisted per task, so an
interrupted run picks up where it left off.`,
	}
)

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger, closer, err := logging.Setup()
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		closeLogs = closer
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if closeLogs != nil {
			return closeLogs()
		}
		return nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
