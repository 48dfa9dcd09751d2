package types

// AggregationMode selects how findings in one category are reduced.
type AggregationMode string

const (
	ModeMean         AggregationMode = "mean"
	ModePresence     AggregationMode = "presence"
	ModeDistribution AggregationMode = "distribution"
)

// ModeFor maps a finding kind to its aggregation mode.
func ModeFor(kind FindingKind) AggregationMode {
	switch kind {
	case KindMatches:
		return ModePresence
	case KindDistribution:
		return ModeDistribution
	default:
		return ModeMean
	}
}

// CategoryAggregate is the per-category reduction used for gating.
type CategoryAggregate struct {
	Category    string          `json:"category"`
	Mode        AggregationMode `json:"mode"`
	Metric      float64         `json:"metric"`
	SampleCount int             `json:"sample_count"`
	Matches     []Match         `json:"matches,omitempty"`
	Shares      []Share         `json:"shares,omitempty"`
}

// Comparison is the relation an aggregate must satisfy against its bound.
type Comparison string

const (
	AtMost  Comparison = "<="
	AtLeast Comparison = ">="
	InBand  Comparison = "in-band"
)

// ThresholdPolicy is the configured bound for one category. Bound applies to
// AtMost and AtLeast; Lower and Upper apply to InBand.
type ThresholdPolicy struct {
	Category   string     `json:"category"`
	Comparison Comparison `json:"comparison"`
	Bound      float64    `json:"bound,omitempty"`
	Lower      float64    `json:"lower,omitempty"`
	Upper      float64    `json:"upper,omitempty"`
}

// Policy is the ordered set of category thresholds for one run.
type Policy []ThresholdPolicy

// Lookup returns the threshold for category, if configured.
func (p Policy) Lookup(category string) (ThresholdPolicy, bool) {
	for _, tp := range p {
		if tp.Category == category {
			return tp, true
		}
	}
	return ThresholdPolicy{}, false
}

// BreakdownEntry is one category line of a verdict.
type BreakdownEntry struct {
	Aggregate CategoryAggregate `json:"aggregate"`
	Policy    *ThresholdPolicy  `json:"policy,omitempty"`
	Gated     bool              `json:"gated"`
	Evaluated bool              `json:"evaluated"`
	Satisfied bool              `json:"satisfied"`
	Note      string            `json:"note,omitempty"`
}

// Verdict is the terminal output of one run.
type Verdict struct {
	Passed    bool             `json:"passed"`
	Breakdown []BreakdownEntry `json:"breakdown"`
}
