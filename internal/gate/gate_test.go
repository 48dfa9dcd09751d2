package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

func mean(category string, metric float64, n int) types.CategoryAggregate {
	return types.CategoryAggregate{Category: category, Mode: types.ModeMean, Metric: metric, SampleCount: n}
}

func ceiling(category string, bound float64) types.ThresholdPolicy {
	return types.ThresholdPolicy{Category: category, Comparison: types.AtMost, Bound: bound}
}

func TestDecideBoundaryIsInclusive(t *testing.T) {
	v := Decide([]types.CategoryAggregate{mean("toxicity", 0.05, 4)}, types.Policy{ceiling("toxicity", 0.05)})
	require.Len(t, v.Breakdown, 1)
	assert.True(t, v.Breakdown[0].Satisfied)
	assert.True(t, v.Passed)

	atLeast := types.ThresholdPolicy{Category: "coverage", Comparison: types.AtLeast, Bound: 0.9}
	v = Decide([]types.CategoryAggregate{mean("coverage", 0.9, 1)}, types.Policy{atLeast})
	assert.True(t, v.Passed)
	v = Decide([]types.CategoryAggregate{mean("coverage", 0.89, 1)}, types.Policy{atLeast})
	assert.False(t, v.Passed)
}

func TestDecideCeilingExceeded(t *testing.T) {
	v := Decide([]types.CategoryAggregate{mean("toxicity", 0.2000001, 1)}, types.Policy{ceiling("toxicity", 0.2)})
	assert.False(t, v.Passed)
	assert.False(t, v.Breakdown[0].Satisfied)
}

func distribution(shares ...float64) types.CategoryAggregate {
	agg := types.CategoryAggregate{Category: "label", Mode: types.ModeDistribution, SampleCount: 1}
	for i, s := range shares {
		agg.Shares = append(agg.Shares, types.Share{Label: string(rune('A' + i)), Share: s})
		agg.Metric = max(agg.Metric, s)
	}
	return agg
}

func TestDecideInBand(t *testing.T) {
	band := types.Policy{{Category: "label", Comparison: types.InBand, Lower: 0.05, Upper: 0.80}}

	v := Decide([]types.CategoryAggregate{distribution(0.04, 0.48, 0.48)}, band)
	assert.False(t, v.Passed, "share below lower bound must fail")

	v = Decide([]types.CategoryAggregate{distribution(0.20, 0.80)}, band)
	assert.True(t, v.Passed, "upper bound is inclusive")

	v = Decide([]types.CategoryAggregate{distribution(0.05, 0.95)}, band)
	assert.False(t, v.Passed, "share above upper bound must fail")

	v = Decide([]types.CategoryAggregate{distribution()}, band)
	assert.True(t, v.Passed, "no observed values")

	v = Decide([]types.CategoryAggregate{mean("label", 0.5, 2)}, band)
	assert.True(t, v.Passed, "scalar metric inside band")
}

func TestDecideMissingCategoryIsZero(t *testing.T) {
	v := Decide(nil, types.Policy{ceiling("hallucination_rate", 0.1)})
	require.Len(t, v.Breakdown, 1)
	e := v.Breakdown[0]
	assert.True(t, e.Satisfied)
	assert.False(t, e.Evaluated)
	assert.Equal(t, NoteMissing, e.Note)
	assert.Equal(t, 0.0, e.Aggregate.Metric)
	assert.True(t, v.Passed)
}

func TestDecideEmptyCategoryIsVisible(t *testing.T) {
	v := Decide([]types.CategoryAggregate{mean("toxicity", 0, 0)}, types.Policy{ceiling("toxicity", 0.05)})
	e := v.Breakdown[0]
	assert.True(t, e.Satisfied)
	assert.True(t, e.Evaluated)
	assert.Equal(t, NoteEmpty, e.Note)
}

func TestDecideUngatedCategoryDoesNotAffectPassed(t *testing.T) {
	aggs := []types.CategoryAggregate{mean("extra", 1, 3), mean("toxicity", 0, 3)}
	v := Decide(aggs, types.Policy{ceiling("toxicity", 0.05)})
	assert.True(t, v.Passed)
	require.Len(t, v.Breakdown, 2)
	assert.Equal(t, "toxicity", v.Breakdown[0].Aggregate.Category)
	assert.Equal(t, "extra", v.Breakdown[1].Aggregate.Category)
	assert.False(t, v.Breakdown[1].Gated)
	assert.Nil(t, v.Breakdown[1].Policy)
}

func TestDecideFollowsPolicyOrder(t *testing.T) {
	aggs := []types.CategoryAggregate{mean("c", 0, 1), mean("a", 0, 1), mean("b", 0, 1)}
	v := Decide(aggs, types.Policy{ceiling("b", 1), ceiling("a", 1), ceiling("c", 1)})
	var order []string
	for _, e := range v.Breakdown {
		order = append(order, e.Aggregate.Category)
	}
	assert.Equal(t, []string{"b", "a", "c"}, order)
}

func TestDecideDoesNotAliasPolicy(t *testing.T) {
	policy := types.Policy{ceiling("a", 0.1), ceiling("b", 0.2)}
	v := Decide(nil, policy)
	v.Breakdown[0].Policy.Bound = 9
	assert.Equal(t, 0.1, policy[0].Bound)
	assert.Equal(t, 0.2, v.Breakdown[1].Policy.Bound)
}

func TestPassedIsConjunction(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		metrics := rapid.SliceOfN(rapid.Float64Range(0, 1), n, n).Draw(t, "metrics")
		bounds := rapid.SliceOfN(rapid.Float64Range(0, 1), n, n).Draw(t, "bounds")

		var aggs []types.CategoryAggregate
		var policy types.Policy
		want := true
		for i := range n {
			name := string(rune('a' + i))
			aggs = append(aggs, mean(name, metrics[i], 1))
			policy = append(policy, ceiling(name, bounds[i]))
			want = want && metrics[i] <= bounds[i]
		}
		v := Decide(aggs, policy)
		if v.Passed != want {
			t.Fatalf("passed = %v, want %v", v.Passed, want)
		}

		// Flip one satisfied category to unsatisfied.
		for i, e := range v.Breakdown {
			if !e.Satisfied {
				continue
			}
			flipped := append([]types.CategoryAggregate(nil), aggs...)
			flipped[i].Metric = bounds[i] + 0.5
			if Decide(flipped, policy).Passed {
				t.Fatalf("flipping category %d did not fail the verdict", i)
			}
			break
		}
	})
}
