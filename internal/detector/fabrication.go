package detector

import (
	"context"
	"strings"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

// Fabrication flags an input that carries both a citation phrase and an
// explicit missing-citation marker. It stands in for a real claim verifier,
// which only needs to return a flag finding to replace it.
type Fabrication struct {
	name     string
	citation string
	missing  string
}

func NewFabrication(name string, s FabricationSettings) *Fabrication {
	return &Fabrication{
		name:     name,
		citation: strings.ToLower(s.CitationMarker),
		missing:  strings.ToLower(s.MissingMarker),
	}
}

func (d *Fabrication) Name() string { return d.name }

func (d *Fabrication) Kind() types.FindingKind { return types.KindFlag }

func (d *Fabrication) Evaluate(_ context.Context, input string) (types.Finding, error) {
	text := strings.ToLower(input)
	return types.Finding{
		Detector: d.name,
		Kind:     types.KindFlag,
		Flag:     strings.Contains(text, d.citation) && strings.Contains(text, d.missing),
	}, nil
}
