// Package aggregate reduces per-case findings into one metric per category.
package aggregate

import (
	"fmt"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/detector"
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

type matchKey struct {
	typ   string
	text  string
	start int
}

// Accumulator is the running reduction for one category. Partial
// accumulators over disjoint case sets can be merged in any grouping.
type Accumulator struct {
	category string
	kind     types.FindingKind

	samples int
	sum     float64

	matches []types.Match
	seen    map[matchKey]struct{}

	counts map[string]int
}

// New returns an empty accumulator for category whose findings are of kind.
func New(category string, kind types.FindingKind) *Accumulator {
	return &Accumulator{category: category, kind: kind}
}

// Add folds one finding into the accumulator.
func (a *Accumulator) Add(f types.Finding) error {
	if f.Kind != a.kind {
		return fmt.Errorf("category %s: finding kind %s does not match %s", a.category, f.Kind, a.kind)
	}
	a.samples++
	switch types.ModeFor(a.kind) {
	case types.ModePresence:
		a.addMatches(f.Matches)
	case types.ModeDistribution:
		for _, s := range f.Shares {
			a.addCount(s.Label, s.Count)
		}
	default:
		a.sum += f.Value()
	}
	return nil
}

func (a *Accumulator) addMatches(ms []types.Match) {
	for _, m := range ms {
		k := matchKey{typ: m.Type, text: m.Text, start: m.Start}
		if a.seen == nil {
			a.seen = map[matchKey]struct{}{}
		}
		if _, dup := a.seen[k]; dup {
			continue
		}
		a.seen[k] = struct{}{}
		a.matches = append(a.matches, m)
	}
}

func (a *Accumulator) addCount(label string, n int) {
	if a.counts == nil {
		a.counts = map[string]int{}
	}
	a.counts[label] += n
}

// Merge folds other into a. Both must describe the same category and kind.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other == nil {
		return nil
	}
	if other.category != a.category || other.kind != a.kind {
		return fmt.Errorf("merge %s/%s into %s/%s", other.category, other.kind, a.category, a.kind)
	}
	a.samples += other.samples
	a.sum += other.sum
	a.addMatches(other.matches)
	for label, n := range other.counts {
		a.addCount(label, n)
	}
	return nil
}

// Result computes the aggregate. Means use a denominator floor of 1, so an
// empty category yields metric 0.
func (a *Accumulator) Result() types.CategoryAggregate {
	agg := types.CategoryAggregate{
		Category:    a.category,
		Mode:        types.ModeFor(a.kind),
		SampleCount: a.samples,
	}
	switch agg.Mode {
	case types.ModePresence:
		if len(a.matches) > 0 {
			agg.Metric = 1
			agg.Matches = append([]types.Match(nil), a.matches...)
		}
	case types.ModeDistribution:
		agg.Shares = detector.SharesFromCounts(a.counts)
		for _, s := range agg.Shares {
			if s.Share > agg.Metric {
				agg.Metric = s.Share
			}
		}
	default:
		agg.Metric = a.sum / float64(max(1, a.samples))
	}
	return agg
}

// Aggregate reduces findings for one category in order.
func Aggregate(category string, kind types.FindingKind, findings []types.Finding) (types.CategoryAggregate, error) {
	acc := New(category, kind)
	for _, f := range findings {
		if err := acc.Add(f); err != nil {
			return types.CategoryAggregate{}, err
		}
	}
	return acc.Result(), nil
}
