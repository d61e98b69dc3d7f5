package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/internal/service/testcase"
)

func newGenerateCmd(root *rootOptions) *cobra.Command {
	var (
		out        string
		showOutput bool
	)
	cmd := &cobra.Command{
		Use:   "generate FILE...",
		Short: "Run the full pipeline on local documents and write the export",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			for _, p := range args {
				if _, ok := models.FileTypeOf(filepath.Ext(p)); !ok {
					return fmt.Errorf("%w: unsupported file type %s", models.ErrInvalidUpload, p)
				}
			}

			pipeline, err := testcase.NewPipelineFromConfig(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			docs := make([]models.Document, len(args))
			for i, p := range args {
				docs[i] = models.Document{Name: filepath.Base(p), Path: p}
			}

			res, err := pipeline.Run(cmd.Context(), docs)
			if err != nil {
				return err
			}

			if out == "" {
				out = "test_cases" + pipeline.Exporter().Extension()
			}
			if err := os.WriteFile(out, res.Artifact, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}

			w := cmd.OutOrStdout()
			if showOutput {
				fmt.Fprintln(w, strings.TrimSpace(res.Reply))
			}
			fmt.Fprintf(w, "%d test cases written to %s\n", len(res.Records), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "export path (default test_cases.<format>)")
	cmd.Flags().BoolVar(&showOutput, "show-output", false, "print the raw model output")
	return cmd
}
