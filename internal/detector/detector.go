// Package detector holds the pluggable units that turn one input into one
// finding. The engine only sees the Detector interface and the kind of
// finding it returns, so a heuristic here can be replaced by a learned
// classifier without touching aggregation or gating.
package detector

import (
	"context"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

// Detector maps one input to one finding.
type Detector interface {
	Name() string
	// Kind is fixed per detector and selects the aggregation mode.
	Kind() types.FindingKind
	Evaluate(ctx context.Context, input string) (types.Finding, error)
}
