// Package cases supplies the ordered evaluation inputs for each category.
package cases

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/auditerr"
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/schema"
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

const maxRecordBytes = 16 * 1024 * 1024

// Source loads every case of one category, in source order.
type Source interface {
	Load(category string) ([]types.EvaluationCase, error)
}

// Records lazily decodes one case per JSONL line. Blank lines are skipped.
// The sequence stops after the first error.
func Records(r io.Reader, category string) iter.Seq2[types.EvaluationCase, error] {
	return func(yield func(types.EvaluationCase, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
		line := 0
		for sc.Scan() {
			line++
			raw := bytes.TrimSpace(sc.Bytes())
			if len(raw) == 0 {
				continue
			}
			c, err := decodeRecord(raw, category)
			if err != nil {
				yield(types.EvaluationCase{}, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(types.EvaluationCase{}, fmt.Errorf("read records: %w", err))
		}
	}
}

func decodeRecord(raw []byte, category string) (types.EvaluationCase, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return types.EvaluationCase{}, fmt.Errorf("decode record: %w", err)
	}
	errs, err := schema.Validate(schema.Case, doc)
	if err != nil {
		return types.EvaluationCase{}, err
	}
	if len(errs) > 0 {
		return types.EvaluationCase{}, fmt.Errorf("invalid record: %s", strings.Join(errs, "; "))
	}

	rec := doc.(map[string]any)
	c := types.EvaluationCase{Category: category}
	field := "prompt"
	if _, ok := rec["prompt"].(string); !ok {
		field = "input"
	}
	c.Input = rec[field].(string)
	for k, v := range rec {
		if k == field {
			continue
		}
		if c.Metadata == nil {
			c.Metadata = map[string]any{}
		}
		c.Metadata[k] = v
	}
	return c, nil
}

// Collect drains a record sequence.
func Collect(seq iter.Seq2[types.EvaluationCase, error]) ([]types.EvaluationCase, error) {
	out := []types.EvaluationCase{}
	for c, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Files maps a category to the JSONL file holding its cases.
type Files map[string]string

func (f Files) Load(category string) ([]types.EvaluationCase, error) {
	path, ok := f[category]
	if !ok {
		return nil, auditerr.Load("", fmt.Errorf("no case file for category %s", category))
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, auditerr.Load(path, err)
	}
	defer fh.Close()

	out, err := Collect(Records(fh, category))
	if err != nil {
		return nil, auditerr.Load(path, err)
	}
	return out, nil
}

// Single is a source with exactly one case: the full content of a file or
// text blob. Every category it is asked for receives that case.
type Single struct {
	Input    string
	Metadata map[string]any
}

func (s Single) Load(category string) ([]types.EvaluationCase, error) {
	return []types.EvaluationCase{{Category: category, Input: s.Input, Metadata: s.Metadata}}, nil
}

// ReadFile builds a Single source from a file's content with CRLF line
// endings normalized to LF.
func ReadFile(path string) (Single, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Single{}, auditerr.Load(path, err)
	}
	input := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return Single{Input: input, Metadata: map[string]any{"path": path}}, nil
}

// Func adapts a function to Source.
type Func func(category string) ([]types.EvaluationCase, error)

func (f Func) Load(category string) ([]types.EvaluationCase, error) { return f(category) }
