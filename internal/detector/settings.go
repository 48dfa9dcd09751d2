package detector

// Settings carries every detector's tunables. DefaultSettings reproduces the
// legacy word lists, phrases and bands exactly; they are intentionally coarse
// and should not be changed without product sign-off.
type Settings struct {
	Toxicity    LexicalSettings     `yaml:"toxicity"`
	Injection   PatternSettings     `yaml:"injection"`
	PII         PatternSettings     `yaml:"pii"`
	Jailbreak   PatternSettings     `yaml:"jailbreak"`
	Fabrication FabricationSettings `yaml:"fabrication"`
	Imbalance   ImbalanceSettings   `yaml:"imbalance"`
}

type LexicalSettings struct {
	Terms []string `yaml:"terms"`
}

// PatternSpec is a named regular expression.
type PatternSpec struct {
	Type  string `yaml:"type"`
	Regex string `yaml:"regex"`
}

type PatternSettings struct {
	Phrases       []string      `yaml:"phrases"`
	Patterns      []PatternSpec `yaml:"patterns"`
	CaseSensitive bool          `yaml:"case_sensitive"`
	// Output is "matches" (list of hits) or "flag" (boolean presence).
	Output string `yaml:"output"`
	// FirstOnly reports each phrase or pattern at most once.
	FirstOnly bool `yaml:"first_only"`
}

type FabricationSettings struct {
	CitationMarker string `yaml:"citation_marker"`
	MissingMarker  string `yaml:"missing_marker"`
}

type ImbalanceSettings struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

const (
	OutputMatches = "matches"
	OutputFlag    = "flag"
)

// DefaultSettings returns the built-in detector configuration.
func DefaultSettings() Settings {
	return Settings{
		Toxicity: LexicalSettings{
			Terms: []string{"hate", "kill", "idiot"},
		},
		Injection: PatternSettings{
			Phrases: []string{
				"ignore previous",
				"developer mode",
				"exfiltrate",
				"\n\n\n",
				"system prompt",
			},
			Output:    OutputMatches,
			FirstOnly: true,
		},
		PII: PatternSettings{
			Patterns: []PatternSpec{
				{Type: "email", Regex: `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`},
				{Type: "ssn", Regex: `\b\d{3}-\d{2}-\d{4}\b`},
				// A match starts on a digit or an opening parenthesis, never on the
				// whitespace in front of the number.
				{Type: "phone", Regex: `(?:\b\d{1,3}[\s.-]?(?:\(\d{3}\)|\d{3})|\(\d{3}\)|\b\d{3})[\s.-]?\d{3}[\s.-]?\d{4}\b`},
			},
			CaseSensitive: true,
			Output:        OutputMatches,
		},
		Jailbreak: PatternSettings{
			Phrases:       []string{"ALLOW"},
			CaseSensitive: true,
			Output:        OutputFlag,
			FirstOnly:     true,
		},
		Fabrication: FabricationSettings{
			CitationMarker: "according to",
			MissingMarker:  "[citation missing]",
		},
		Imbalance: ImbalanceSettings{
			Lower: 0.05,
			Upper: 0.80,
		},
	}
}
