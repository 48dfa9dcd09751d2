// Package hash computes content digests: canonical JSON for verdicts and
// sha256 over input files.
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
)

const prefix = "sha256:"

// Canonical encodes v as JSON with sorted object keys and no insignificant
// whitespace. Numbers keep their shortest round-trip form.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for canonicalization: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w", err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Digest returns "sha256:<hex>" over the canonical encoding of v.
func Digest(v any) (string, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return Sum(canonical), nil
}

// Sum returns "sha256:<hex>" over raw.
func Sum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return prefix + hex.EncodeToString(sum[:])
}

func encode(w *bytes.Buffer, v any) error {
	switch vv := v.(type) {
	case nil:
		w.WriteString("null")
	case bool:
		w.WriteString(strconv.FormatBool(vv))
	case string:
		b, err := json.Marshal(vv)
		if err != nil {
			return err
		}
		w.Write(b)
	case json.Number:
		if _, err := strconv.ParseFloat(vv.String(), 64); err != nil {
			return fmt.Errorf("invalid number %q: %w", vv, err)
		}
		w.WriteString(vv.String())
	case []any:
		w.WriteByte('[')
		for i, item := range vv {
			if i > 0 {
				w.WriteByte(',')
			}
			if err := encode(w, item); err != nil {
				return err
			}
		}
		w.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		w.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				w.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			w.Write(kb)
			w.WriteByte(':')
			if err := encode(w, vv[k]); err != nil {
				return err
			}
		}
		w.WriteByte('}')
	default:
		return fmt.Errorf("unexpected %T in decoded document", v)
	}
	return nil
}

// File streams path through sha256 and returns the digest and byte count.
func File(path string) (digest string, size int64, err error) {
	f, err := openFile(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash file %s: %w", path, err)
	}
	return prefix + hex.EncodeToString(h.Sum(nil)), n, nil
}
