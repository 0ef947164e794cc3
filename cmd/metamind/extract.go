package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tordrt/metamind"
	"github.com/tordrt/metamind/internal/formatter"
)

type extractFlags struct {
	input      inputFlags
	format     string
	outputFile string
	outputDir  string
}

func newExtractCmd() *cobra.Command {
	f := &extractFlags{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a schema and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, f)
		},
	}
	f.input.bind(cmd)
	cmd.Flags().StringVarP(&f.format, "format", "f", formatter.FormatText, "Output format: text, markdown, json or yaml")
	cmd.Flags().StringVarP(&f.outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "d", "", "Output directory for multi-file output")
	return cmd
}

func runExtract(cmd *cobra.Command, f *extractFlags) error {
	if f.outputDir != "" && f.outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}

	s, err := f.input.load(cmd.Context(), cmd.InOrStdin(), cmd.ErrOrStderr(), cfg.Extract.SampleRows)
	if err != nil {
		return err
	}
	appLog.Debug("schema extracted", "tables", len(s.Tables))

	if f.outputDir != "" {
		return metamind.FormatSchema(s, &metamind.OutputOptions{OutputDir: f.outputDir, Format: f.format})
	}
	return writeOutput(cmd.OutOrStdout(), f.outputFile, func(w io.Writer) error {
		return metamind.FormatSchema(s, &metamind.OutputOptions{Writer: w, Format: f.format})
	})
}

// writeOutput renders into path, replaced atomically, or into stdout when path is empty.
func writeOutput(stdout io.Writer, path string, render func(io.Writer) error) error {
	if path == "" {
		return render(stdout)
	}
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	if err := formatter.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
