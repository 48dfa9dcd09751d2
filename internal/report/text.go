package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

// WriteText prints the human diagnostic: one line per category, then its
// hits or distribution, then the overall verdict.
func WriteText(w io.Writer, r types.Report, colored bool) error {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	info := color.New(color.FgCyan)
	dim := color.New(color.Faint)
	for _, c := range []*color.Color{pass, fail, info, dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	paint := func(s string) string {
		switch s {
		case "PASS":
			return pass.Sprint(s)
		case "FAIL":
			return fail.Sprint(s)
		default:
			return info.Sprint(s)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range r.Verdict.Breakdown {
		a := e.Aggregate
		fmt.Fprintf(tw, "%s\t%s\tmetric=%s\tsamples=%d\tthreshold %s\n",
			paint(status(e)), a.Category, formatMetric(a.Metric), a.SampleCount, describePolicy(e.Policy))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var b strings.Builder
	for _, e := range r.Verdict.Breakdown {
		a := e.Aggregate
		if len(a.Matches) == 0 && len(a.Shares) == 0 && e.Note == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", a.Category)
		for _, m := range a.Matches {
			fmt.Fprintf(&b, "  %s: %s\n", m.Type, strconv.Quote(m.Text))
		}
		for _, s := range a.Shares {
			fmt.Fprintf(&b, "  %s: %.4f (%d)\n", s.Label, s.Share, s.Count)
		}
		if e.Note != "" {
			fmt.Fprintf(&b, "  %s\n", dim.Sprint("note: "+e.Note))
		}
	}
	overall := "PASS"
	if !r.Verdict.Passed {
		overall = "FAIL"
	}
	fmt.Fprintf(&b, "\nverdict: %s\n", paint(overall))
	_, err := io.WriteString(w, b.String())
	return err
}

func formatMetric(m float64) string {
	return strconv.FormatFloat(m, 'f', 4, 64)
}
