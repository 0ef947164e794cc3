package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tordrt/metamind"
)

type docsFlags struct {
	input      inputFlags
	outputFile string
	outputDir  string
}

func newDocsCmd() *cobra.Command {
	f := &docsFlags{}
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Generate table documentation with the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocs(cmd, f)
		},
	}
	f.input.bind(cmd)
	cmd.Flags().StringVarP(&f.outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "d", "", "Output directory: _overview.md plus one file per table")
	return cmd
}

func runDocs(cmd *cobra.Command, f *docsFlags) error {
	if f.outputDir != "" && f.outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}

	ctx := cmd.Context()
	s, err := f.input.load(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), cfg.Extract.SampleRows)
	if err != nil {
		return err
	}
	key, err := apiKey(nil)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Documenting %d tables...\n", len(s.Tables))
	records, err := metamind.GenerateDocs(ctx, newClient(), s, key)
	if err != nil {
		return fmt.Errorf("failed to generate documentation: %w", err)
	}

	if f.outputDir != "" {
		return metamind.WriteDocs(s, records, &metamind.OutputOptions{OutputDir: f.outputDir})
	}
	return writeOutput(cmd.OutOrStdout(), f.outputFile, func(w io.Writer) error {
		return metamind.WriteDocs(s, records, &metamind.OutputOptions{Writer: w})
	})
}
