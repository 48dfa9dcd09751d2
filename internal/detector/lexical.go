package detector

import (
	"context"
	"strings"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

// Lexical scores the fraction of whitespace-delimited, case-folded tokens that
// belong to a fixed term set. Tokens are compared whole, so punctuation stuck
// to a word prevents a match.
type Lexical struct {
	name  string
	terms map[string]struct{}
}

func NewLexical(name string, s LexicalSettings) *Lexical {
	terms := make(map[string]struct{}, len(s.Terms))
	for _, t := range s.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms[t] = struct{}{}
		}
	}
	return &Lexical{name: name, terms: terms}
}

func (d *Lexical) Name() string { return d.name }

func (d *Lexical) Kind() types.FindingKind { return types.KindScore }

func (d *Lexical) Evaluate(_ context.Context, input string) (types.Finding, error) {
	return types.Finding{
		Detector: d.name,
		Kind:     types.KindScore,
		Score:    d.Score(input),
	}, nil
}

// Score returns flagged tokens over max(1, total tokens).
func (d *Lexical) Score(input string) float64 {
	tokens := strings.Fields(strings.ToLower(input))
	flagged := 0
	for _, tok := range tokens {
		if _, ok := d.terms[tok]; ok {
			flagged++
		}
	}
	return float64(flagged) / float64(max(1, len(tokens)))
}
