// Package gate compares category aggregates with the threshold policy.
package gate

import (
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

const (
	NoteEmpty   = "no cases evaluated; metric defaults to 0"
	NoteMissing = "category not evaluated; metric treated as 0"
	NoteUngated = "no threshold configured; reported only"
)

// Decide builds the verdict. Policy categories come first in policy order,
// followed by aggregates the policy does not mention. Passed is the AND of
// every policy category.
func Decide(aggregates []types.CategoryAggregate, policy types.Policy) types.Verdict {
	byCategory := make(map[string]types.CategoryAggregate, len(aggregates))
	for _, a := range aggregates {
		if _, dup := byCategory[a.Category]; !dup {
			byCategory[a.Category] = a
		}
	}

	v := types.Verdict{Passed: true, Breakdown: make([]types.BreakdownEntry, 0, len(policy)+len(aggregates))}
	gated := make(map[string]bool, len(policy))
	for _, tp := range policy {
		if gated[tp.Category] {
			continue
		}
		gated[tp.Category] = true

		tp := tp
		entry := types.BreakdownEntry{Policy: &tp, Gated: true}
		agg, ok := byCategory[tp.Category]
		switch {
		case !ok:
			entry.Aggregate = types.CategoryAggregate{Category: tp.Category, Mode: types.ModeMean}
			entry.Note = NoteMissing
		default:
			entry.Aggregate = agg
			entry.Evaluated = true
			if agg.SampleCount == 0 {
				entry.Note = NoteEmpty
			}
		}
		entry.Satisfied = Satisfied(entry.Aggregate, tp)
		if !entry.Satisfied {
			v.Passed = false
		}
		v.Breakdown = append(v.Breakdown, entry)
	}

	emitted := map[string]bool{}
	for _, a := range aggregates {
		if gated[a.Category] || emitted[a.Category] {
			continue
		}
		emitted[a.Category] = true
		entry := types.BreakdownEntry{Aggregate: a, Evaluated: true, Satisfied: true, Note: NoteUngated}
		if a.SampleCount == 0 {
			entry.Note = NoteEmpty + "; " + NoteUngated
		}
		v.Breakdown = append(v.Breakdown, entry)
	}
	return v
}

// Satisfied evaluates one comparison. Boundary values satisfy both <= and >=.
// In-band checks every observed share when the aggregate carries a
// distribution, otherwise the metric; both ends are inclusive.
func Satisfied(agg types.CategoryAggregate, tp types.ThresholdPolicy) bool {
	switch tp.Comparison {
	case types.AtLeast:
		return agg.Metric >= tp.Bound
	case types.InBand:
		if agg.Mode == types.ModeDistribution {
			for _, s := range agg.Shares {
				if s.Share < tp.Lower || s.Share > tp.Upper {
					return false
				}
			}
			return true
		}
		return agg.Metric >= tp.Lower && agg.Metric <= tp.Upper
	default:
		return agg.Metric <= tp.Bound
	}
}
