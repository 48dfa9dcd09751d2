package detector

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

type compiledPattern struct {
	typ string
	re  *regexp.Regexp
}

// Pattern reports fixed phrases and regular expressions found in the input,
// either as a list of typed matches or as a single presence flag.
type Pattern struct {
	name          string
	kind          types.FindingKind
	phrases       []string
	patterns      []compiledPattern
	caseSensitive bool
	firstOnly     bool
}

// NewPattern compiles s. An invalid expression or output mode is rejected
// here rather than at evaluation time.
func NewPattern(name string, s PatternSettings) (*Pattern, error) {
	kind := types.KindMatches
	switch s.Output {
	case "", OutputMatches:
	case OutputFlag:
		kind = types.KindFlag
	default:
		return nil, fmt.Errorf("unsupported output %q", s.Output)
	}

	d := &Pattern{
		name:          name,
		kind:          kind,
		caseSensitive: s.CaseSensitive,
		firstOnly:     s.FirstOnly,
	}
	for _, p := range s.Phrases {
		if p == "" {
			continue
		}
		d.phrases = append(d.phrases, p)
	}
	for _, spec := range s.Patterns {
		expr := spec.Regex
		if !s.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", spec.Type, err)
		}
		d.patterns = append(d.patterns, compiledPattern{typ: spec.Type, re: re})
	}
	if len(d.phrases) == 0 && len(d.patterns) == 0 {
		return nil, fmt.Errorf("no phrases or patterns configured")
	}
	return d, nil
}

func (d *Pattern) Name() string { return d.name }

func (d *Pattern) Kind() types.FindingKind { return d.kind }

func (d *Pattern) Evaluate(_ context.Context, input string) (types.Finding, error) {
	matches := d.Find(input)
	f := types.Finding{Detector: d.name, Kind: d.kind}
	if d.kind == types.KindFlag {
		f.Flag = len(matches) > 0
		return f, nil
	}
	f.Matches = matches
	return f, nil
}

// Find returns hits ordered by phrase, then pattern, then position. Phrase
// hits are typed by the phrase itself; case-insensitive phrase matching runs
// on the lower-cased input, and offsets refer to that string.
func (d *Pattern) Find(input string) []types.Match {
	text := input
	if !d.caseSensitive {
		text = strings.ToLower(input)
	}

	var out []types.Match
	for _, phrase := range d.phrases {
		needle := phrase
		if !d.caseSensitive {
			needle = strings.ToLower(phrase)
		}
		offset := 0
		for {
			idx := strings.Index(text[offset:], needle)
			if idx < 0 {
				break
			}
			start := offset + idx
			end := start + len(needle)
			out = append(out, types.Match{Type: phrase, Text: text[start:end], Start: start, End: end})
			if d.firstOnly {
				break
			}
			offset = end
		}
	}

	for _, p := range d.patterns {
		n := -1
		if d.firstOnly {
			n = 1
		}
		for _, loc := range p.re.FindAllStringIndex(input, n) {
			out = append(out, types.Match{Type: p.typ, Text: input[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
		}
	}
	return out
}
