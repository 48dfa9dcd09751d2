// Package report renders verdicts and maps them to process exit statuses.
// Renderers only read the verdict.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/hash"
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

const (
	ExitPass  = 0
	ExitFail  = 1
	ExitUsage = 2
	ExitError = 3
)

const SchemaVersion = "auditgate.report/v1"

const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "md"
)

// ExitCode maps a verdict to pass or fail.
func ExitCode(v types.Verdict) int {
	if v.Passed {
		return ExitPass
	}
	return ExitFail
}

// NewReport wraps v with a run id, timestamp and the canonical digest of v.
func NewReport(tool string, v types.Verdict, inputs []types.Subject) (types.Report, error) {
	digest, err := hash.Digest(v)
	if err != nil {
		return types.Report{}, fmt.Errorf("digest verdict: %w", err)
	}
	return types.Report{
		SchemaVersion: SchemaVersion,
		RunID:         uuid.NewString(),
		Tool:          tool,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		VerdictDigest: digest,
		ExitCode:      ExitCode(v),
		Inputs:        inputs,
		Verdict:       v,
	}, nil
}

// ValidFormat reports whether format is a known renderer.
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatJSON, FormatMarkdown:
		return true
	}
	return false
}

// Render writes r to w in format. colored applies to text only.
func Render(w io.Writer, format string, r types.Report, colored bool) error {
	switch format {
	case FormatText, "":
		return WriteText(w, r, colored)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatMarkdown:
		return WriteMarkdown(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteFile renders r to path.
func WriteFile(path, format string, r types.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	if err := Render(f, format, r, false); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func WriteJSON(w io.Writer, r types.Report) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return err
}

// ReadJSON loads a report written by WriteJSON and checks its verdict digest.
func ReadJSON(path string) (types.Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Report{}, err
	}
	var r types.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return types.Report{}, fmt.Errorf("parse report: %w", err)
	}
	if r.SchemaVersion != SchemaVersion {
		return types.Report{}, fmt.Errorf("unsupported report schema %q", r.SchemaVersion)
	}
	digest, err := hash.Digest(r.Verdict)
	if err != nil {
		return types.Report{}, err
	}
	if r.VerdictDigest != digest {
		return types.Report{}, fmt.Errorf("verdict digest mismatch: %s != %s", r.VerdictDigest, digest)
	}
	return r, nil
}

func describePolicy(p *types.ThresholdPolicy) string {
	if p == nil {
		return "-"
	}
	switch p.Comparison {
	case types.InBand:
		return fmt.Sprintf("in [%g, %g]", p.Lower, p.Upper)
	default:
		return fmt.Sprintf("%s %g", p.Comparison, p.Bound)
	}
}

func status(e types.BreakdownEntry) string {
	switch {
	case !e.Gated:
		return "INFO"
	case e.Satisfied:
		return "PASS"
	default:
		return "FAIL"
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	return strings.ReplaceAll(s, "|", "\\|")
}
