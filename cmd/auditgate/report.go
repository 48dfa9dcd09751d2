package main

import (
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/auditerr"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/report"
)

func newReportCommand() *cobra.Command {
	var inPath, outPath, format string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render a saved JSON report",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return auditerr.Usage("--in is required")
			}
			if !report.ValidFormat(format) {
				return auditerr.Usage("unsupported format %s", format)
			}
			r, err := report.ReadJSON(inPath)
			if err != nil {
				return auditerr.Load(inPath, err)
			}
			if outPath == "" {
				return report.Render(cmd.OutOrStdout(), format, r, false)
			}
			if err := report.WriteFile(outPath, format, r); err != nil {
				return err
			}
			cmd.Println(outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "JSON report written by --format json")
	cmd.Flags().StringVar(&outPath, "out", "", "output path (stdout when empty)")
	cmd.Flags().StringVar(&format, "format", report.FormatMarkdown, "output format (text|json|md)")
	return cmd
}
