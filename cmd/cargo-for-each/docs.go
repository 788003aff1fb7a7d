package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var (
	docsManDir      string
	docsMarkdownDir string
)

func init() {
	docsCmd := &cobra.Command{
		Use:   "docs",
		Short: "Generate reference documentation",
	}

	manCmd := &cobra.Command{
		Use:   "man",
		Short: "Write man pages for every command",
		RunE:  runDocsMan,
	}
	manCmd.Flags().StringVar(&docsManDir, "output-dir", ".", "directory to write man pages to")
	docsCmd.AddCommand(manCmd)

	markdownCmd := &cobra.Command{
		Use:   "markdown",
		Short: "Write markdown reference pages for every command",
		RunE:  runDocsMarkdown,
	}
	markdownCmd.Flags().StringVar(&docsMarkdownDir, "output-dir", ".", "directory to write markdown pages to")
	docsCmd.AddCommand(markdownCmd)

	rootCmd.AddCommand(docsCmd)
}

func runDocsMan(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(docsManDir, 0o755); err != nil {
		return err
	}
	header := &doc.GenManHeader{Title: "CARGO-FOR-EACH", Section: "1"}
	return doc.GenManTree(rootCmd, header, docsManDir)
}

func runDocsMarkdown(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(docsMarkdownDir, 0o755); err != nil {
		return err
	}
	return doc.GenMarkdownTree(rootCmd, docsMarkdownDir)
}
