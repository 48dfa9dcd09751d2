package schema

import (
	"embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const (
	Config = "config"
	Case   = "case"
)

//go:embed v1/*.schema.json
var files embed.FS

var (
	mu       sync.Mutex
	compiled = map[string]*gojsonschema.Schema{}
)

// Validate checks doc against the named embedded schema. A nil error with a
// non-empty slice means the document was readable but invalid.
func Validate(name string, doc any) ([]string, error) {
	s, err := load(name)
	if err != nil {
		return nil, err
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}

func load(name string) (*gojsonschema.Schema, error) {
	mu.Lock()
	defer mu.Unlock()
	if s, ok := compiled[name]; ok {
		return s, nil
	}
	raw, err := files.ReadFile("v1/" + name + ".schema.json")
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", name, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	compiled[name] = s
	return s, nil
}
