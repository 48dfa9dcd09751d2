package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

// Imbalance computes the normalized frequency of each label in a categorical
// column. The input is either a JSON array of labels (see EncodeLabels) or
// the column joined with newlines; empty labels are treated as missing values
// and skipped.
type Imbalance struct {
	name  string
	lower float64
	upper float64
}

func NewImbalance(name string, s ImbalanceSettings) (*Imbalance, error) {
	if s.Lower < 0 || s.Upper > 1 || s.Lower > s.Upper {
		return nil, fmt.Errorf("invalid band [%g, %g]", s.Lower, s.Upper)
	}
	return &Imbalance{name: name, lower: s.Lower, upper: s.Upper}, nil
}

func (d *Imbalance) Name() string { return d.name }

func (d *Imbalance) Kind() types.FindingKind { return types.KindDistribution }

func (d *Imbalance) Evaluate(_ context.Context, input string) (types.Finding, error) {
	shares := Distribution(Labels(input))
	flag := false
	for _, s := range shares {
		if s.Share < d.lower || s.Share > d.upper {
			flag = true
			break
		}
	}
	return types.Finding{
		Detector: d.name,
		Kind:     types.KindDistribution,
		Flag:     flag,
		Shares:   shares,
	}, nil
}

// EncodeLabels packs a column into a detector input. Labels may contain
// newlines.
func EncodeLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("encode labels: %w", err)
	}
	return string(raw), nil
}

// Labels decodes an EncodeLabels array, falling back to SplitLabels for
// plain text.
func Labels(input string) []string {
	if strings.HasPrefix(strings.TrimSpace(input), "[") {
		var labels []string
		if err := json.Unmarshal([]byte(input), &labels); err == nil {
			out := make([]string, 0, len(labels))
			for _, l := range labels {
				if l != "" {
					out = append(out, l)
				}
			}
			return out
		}
	}
	return SplitLabels(input)
}

// SplitLabels turns a newline-joined column back into labels.
func SplitLabels(input string) []string {
	if input == "" {
		return nil
	}
	lines := strings.Split(input, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSuffix(l, "\r")
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Distribution counts labels and normalizes by the total.
func Distribution(labels []string) []types.Share {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	return SharesFromCounts(counts)
}

// SharesFromCounts orders shares by count descending, then label.
func SharesFromCounts(counts map[string]int) []types.Share {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return nil
	}
	out := make([]types.Share, 0, len(counts))
	for label, c := range counts {
		out = append(out, types.Share{Label: label, Count: c, Share: float64(c) / float64(total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
