package detector

import (
	"fmt"
	"sort"
)

const (
	NameToxicity    = "toxicity"
	NameInjection   = "injection"
	NamePII         = "pii"
	NameJailbreak   = "jailbreak"
	NameFabrication = "fabrication"
	NameImbalance   = "imbalance"
)

// Factory builds a detector from settings.
type Factory func(Settings) (Detector, error)

// Registry maps detector names to constructors.
type Registry map[string]Factory

// Builtins contains the heuristic detectors.
var Builtins = Registry{
	NameToxicity: func(s Settings) (Detector, error) {
		return NewLexical(NameToxicity, s.Toxicity), nil
	},
	NameInjection: func(s Settings) (Detector, error) {
		return NewPattern(NameInjection, s.Injection)
	},
	NamePII: func(s Settings) (Detector, error) {
		return NewPattern(NamePII, s.PII)
	},
	NameJailbreak: func(s Settings) (Detector, error) {
		return NewPattern(NameJailbreak, s.Jailbreak)
	},
	NameFabrication: func(s Settings) (Detector, error) {
		return NewFabrication(NameFabrication, s.Fabrication), nil
	},
	NameImbalance: func(s Settings) (Detector, error) {
		return NewImbalance(NameImbalance, s.Imbalance)
	},
}

// Build instantiates the named detector.
func (r Registry) Build(name string, s Settings) (Detector, error) {
	factory, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown detector: %s", name)
	}
	d, err := factory(s)
	if err != nil {
		return nil, fmt.Errorf("build detector %s: %w", name, err)
	}
	return d, nil
}

// Names lists registered detectors in sorted order.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
