package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feichai0017/testcase-generator/internal/agent/parser"
	"github.com/feichai0017/testcase-generator/pkg/export"
)

func newParseCmd(root *rootOptions) *cobra.Command {
	var (
		out    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "parse [REPLY_FILE]",
		Short: "Parse saved model output into test case records",
		Long:  "Reads pipe-delimited model output from REPLY_FILE, or stdin when omitted, and prints the normalised records.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := root.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			reply, err := io.ReadAll(r)
			if err != nil {
				return err
			}

			records := parser.NewResponseParser(log.Named("parser")).Parse(string(reply))

			w := cmd.OutOrStdout()
			for _, rec := range records {
				fmt.Fprintln(w, strings.Join(rec.Values(), " | "))
			}

			if out != "" {
				exp, err := export.NewExporter(format)
				if err != nil {
					return err
				}
				data, err := exp.Export(records)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write an export to this path")
	cmd.Flags().StringVar(&format, "format", "xlsx", "export format: xlsx or json")
	return cmd
}
