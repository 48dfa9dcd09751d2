package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

func BuildMarkdown(r types.Report) string {
	overall := "PASS"
	if !r.Verdict.Passed {
		overall = "FAIL"
	}
	var b strings.Builder
	b.WriteString("# Audit Gate Report\n\n")
	b.WriteString(fmt.Sprintf("- Status: **%s**\n", overall))
	b.WriteString(fmt.Sprintf("- Exit Code: `%d`\n", r.ExitCode))
	if r.Tool != "" {
		b.WriteString(fmt.Sprintf("- Tool: `%s`\n", r.Tool))
	}
	if r.RunID != "" {
		b.WriteString(fmt.Sprintf("- Run ID: `%s`\n", r.RunID))
	}
	if r.VerdictDigest != "" {
		b.WriteString(fmt.Sprintf("- Verdict Digest: `%s`\n", r.VerdictDigest))
	}

	b.WriteString("\n## Categories\n\n")
	b.WriteString("| Category | Status | Mode | Metric | Samples | Threshold | Note |\n")
	b.WriteString("|---|---|---|---:|---:|---|---|\n")
	for _, e := range r.Verdict.Breakdown {
		a := e.Aggregate
		note := e.Note
		if note == "" {
			note = "-"
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %s | %s |\n",
			escapeCell(a.Category), status(e), a.Mode, formatMetric(a.Metric), a.SampleCount,
			escapeCell(describePolicy(e.Policy)), escapeCell(note)))
	}

	for _, e := range r.Verdict.Breakdown {
		a := e.Aggregate
		if len(a.Matches) > 0 {
			b.WriteString(fmt.Sprintf("\n### %s hits\n\n", a.Category))
			b.WriteString("| Type | Match | Offset |\n")
			b.WriteString("|---|---|---:|\n")
			for _, m := range a.Matches {
				b.WriteString(fmt.Sprintf("| %s | `%s` | %d |\n", escapeCell(m.Type), escapeCell(m.Text), m.Start))
			}
		}
		if len(a.Shares) > 0 {
			b.WriteString(fmt.Sprintf("\n### %s distribution\n\n", a.Category))
			b.WriteString("| Label | Count | Share |\n")
			b.WriteString("|---|---:|---:|\n")
			for _, s := range a.Shares {
				b.WriteString(fmt.Sprintf("| %s | %d | %.4f |\n", escapeCell(s.Label), s.Count, s.Share))
			}
		}
	}

	if len(r.Inputs) > 0 {
		b.WriteString("\n## Inputs\n\n")
		b.WriteString("| Name | SHA-256 | Bytes |\n")
		b.WriteString("|---|---|---:|\n")
		for _, in := range r.Inputs {
			b.WriteString(fmt.Sprintf("| %s | `%s` | %d |\n", escapeCell(in.Name), in.Digest.SHA256, in.SizeBytes))
		}
	}
	return b.String()
}

func WriteMarkdown(w io.Writer, r types.Report) error {
	_, err := io.WriteString(w, BuildMarkdown(r))
	return err
}
