package types

// FindingKind is the shape of a detector's raw output. Aggregation and gating
// dispatch on the kind, never on the detector or category name.
type FindingKind string

const (
	KindScore        FindingKind = "score"
	KindFlag         FindingKind = "flag"
	KindMatches      FindingKind = "matches"
	KindDistribution FindingKind = "distribution"
)

// EvaluationCase is one input handed to a detector.
type EvaluationCase struct {
	Category string         `json:"category"`
	Input    string         `json:"input"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Finding is one detector's output for one case.
type Finding struct {
	Detector string      `json:"detector"`
	Kind     FindingKind `json:"kind"`
	Score    float64     `json:"score,omitempty"`
	Flag     bool        `json:"flag,omitempty"`
	Matches  []Match     `json:"matches,omitempty"`
	Shares   []Share     `json:"shares,omitempty"`
}

// Value returns the numeric contribution of a score or flag finding.
// Flags are coerced to 0 or 1. Other kinds contribute 0.
func (f Finding) Value() float64 {
	switch f.Kind {
	case KindScore:
		return f.Score
	case KindFlag:
		if f.Flag {
			return 1
		}
	}
	return 0
}

// Match is a single pattern hit. Start and End are byte offsets into the
// evaluated input.
type Match struct {
	Type  string `json:"type"`
	Text  string `json:"match"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Share is the normalized frequency of one label in a categorical column.
type Share struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}
