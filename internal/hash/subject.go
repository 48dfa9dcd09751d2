package hash

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	return f, nil
}

// Subjects digests each input file for the report's audit trail. Duplicate
// paths are listed once.
func Subjects(paths ...string) ([]types.Subject, error) {
	seen := map[string]bool{}
	out := make([]types.Subject, 0, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		digest, size, err := File(p)
		if err != nil {
			return nil, err
		}
		out = append(out, types.Subject{
			Name:      filepath.Base(p),
			URI:       "file://" + filepath.ToSlash(p),
			Digest:    types.Digest{SHA256: strings.TrimPrefix(digest, prefix)},
			SizeBytes: size,
		})
	}
	return out, nil
}
