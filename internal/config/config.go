// Package config loads the run configuration for the eval runner and the
// detector settings shared by the scanners.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/auditerr"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/detector"
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/schema"
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

const (
	DefaultPath        = "evals/config.example.yaml"
	DefaultWorkers     = 1
	DefaultCaseTimeout = 30 * time.Second
	DefaultTimeout     = 30 * time.Second
)

// Config is a fully resolved run configuration.
type Config struct {
	Path       string
	Cases      []CaseFile
	Thresholds types.Policy
	Categories []Category
	Detectors  detector.Settings
	Model      Model
	Run        Run
}

// CaseFile binds a cases key to the JSONL file holding its records.
type CaseFile struct {
	Key  string
	Path string
}

// Category binds a gated category to its cases and detector. Model selects
// whether the detector scores the model output or the case input directly.
type Category struct {
	Name     string `yaml:"name"`
	Cases    string `yaml:"cases"`
	Detector string `yaml:"detector"`
	Model    *bool  `yaml:"model"`
}

// UsesModel reports whether the category's inputs are sent to the model.
func (c Category) UsesModel() bool {
	return c.Model == nil || *c.Model
}

type Model struct {
	Endpoint          string
	Name              string
	APIKeyEnv         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// APIKey reads the key from the configured environment variable.
func (m Model) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}

type Run struct {
	Workers     int
	CaseTimeout time.Duration
}

type fileConfig struct {
	Version    any        `yaml:"version"`
	Cases      yaml.Node  `yaml:"cases"`
	Thresholds yaml.Node  `yaml:"thresholds"`
	Categories []Category `yaml:"categories"`
	Detectors  yaml.Node  `yaml:"detectors"`
	Model      struct {
		Endpoint          string  `yaml:"endpoint"`
		Name              string  `yaml:"name"`
		APIKeyEnv         string  `yaml:"api_key_env"`
		Timeout           string  `yaml:"timeout"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"model"`
	Run struct {
		Workers     int    `yaml:"workers"`
		CaseTimeout string `yaml:"case_timeout"`
	} `yaml:"run"`
}

type thresholdSpec struct {
	Comparison string   `yaml:"comparison"`
	Bound      *float64 `yaml:"bound"`
	Lower      *float64 `yaml:"lower"`
	Upper      *float64 `yaml:"upper"`
}

// Default returns a configuration with built-in detector settings and no
// categories.
func Default() Config {
	return Config{
		Detectors: detector.DefaultSettings(),
		Model:     Model{Timeout: DefaultTimeout},
		Run:       Run{Workers: DefaultWorkers, CaseTimeout: DefaultCaseTimeout},
	}
}

// Load reads, validates and resolves the configuration at path. Every
// failure is a LoadError.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, auditerr.Load(path, fmt.Errorf("read config: %w", err))
	}
	cfg, err := Parse(path, raw)
	if err != nil {
		return Config{}, auditerr.Load(path, err)
	}
	return cfg, nil
}

// Parse decodes raw as if it had been read from path. Relative case paths
// resolve against the working directory first, then the directory of path.
func Parse(path string, raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		return Config{}, errors.New("config is empty")
	}
	errs, err := schema.Validate(schema.Config, doc)
	if err != nil {
		return Config{}, err
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config schema validation failed: %s", strings.Join(errs, "; "))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	cfg.Path = path

	cfg.Cases, err = decodeCases(path, &fc.Cases)
	if err != nil {
		return Config{}, err
	}
	cfg.Thresholds, err = decodeThresholds(&fc.Thresholds)
	if err != nil {
		return Config{}, err
	}
	if !fc.Detectors.IsZero() {
		if err := fc.Detectors.Decode(&cfg.Detectors); err != nil {
			return Config{}, fmt.Errorf("parse detectors: %w", err)
		}
	}

	cfg.Model.Endpoint = fc.Model.Endpoint
	cfg.Model.Name = fc.Model.Name
	cfg.Model.APIKeyEnv = fc.Model.APIKeyEnv
	cfg.Model.RequestsPerSecond = fc.Model.RequestsPerSecond
	if fc.Model.Timeout != "" {
		if cfg.Model.Timeout, err = parseDuration("model.timeout", fc.Model.Timeout); err != nil {
			return Config{}, err
		}
	}
	if fc.Run.Workers > 0 {
		cfg.Run.Workers = fc.Run.Workers
	}
	if fc.Run.CaseTimeout != "" {
		if cfg.Run.CaseTimeout, err = parseDuration("run.case_timeout", fc.Run.CaseTimeout); err != nil {
			return Config{}, err
		}
	}

	cfg.Categories, err = resolveCategories(fc.Categories, cfg.Cases, cfg.Thresholds)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CasePath returns the resolved file for a cases key.
func (c Config) CasePath(key string) (string, bool) {
	for _, cf := range c.Cases {
		if cf.Key == key {
			return cf.Path, true
		}
	}
	return "", false
}

func decodeCases(configPath string, node *yaml.Node) ([]CaseFile, error) {
	if node.IsZero() {
		return nil, nil
	}
	out := make([]CaseFile, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var p string
		if err := node.Content[i+1].Decode(&p); err != nil {
			return nil, fmt.Errorf("cases.%s: %w", key, err)
		}
		out = append(out, CaseFile{Key: key, Path: resolvePath(configPath, p)})
	}
	return out, nil
}

func decodeThresholds(node *yaml.Node) (types.Policy, error) {
	if node.IsZero() {
		return nil, nil
	}
	out := make(types.Policy, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		val := node.Content[i+1]
		tp := types.ThresholdPolicy{Category: name, Comparison: types.AtMost}

		if val.Kind == yaml.ScalarNode {
			if err := val.Decode(&tp.Bound); err != nil {
				return nil, fmt.Errorf("thresholds.%s: %w", name, err)
			}
			out = append(out, tp)
			continue
		}

		var spec thresholdSpec
		if err := val.Decode(&spec); err != nil {
			return nil, fmt.Errorf("thresholds.%s: %w", name, err)
		}
		switch {
		case spec.Lower != nil && spec.Upper != nil:
			tp.Comparison = types.InBand
			tp.Lower, tp.Upper = *spec.Lower, *spec.Upper
			if tp.Lower > tp.Upper {
				return nil, fmt.Errorf("thresholds.%s: lower %v is above upper %v", name, tp.Lower, tp.Upper)
			}
		case spec.Bound != nil:
			if spec.Comparison != "" {
				tp.Comparison = types.Comparison(spec.Comparison)
			}
			tp.Bound = *spec.Bound
		default:
			return nil, fmt.Errorf("thresholds.%s: needs bound or lower and upper", name)
		}
		out = append(out, tp)
	}
	return out, nil
}

// legacyCategories maps the historical cases keys onto their categories.
var legacyCategories = []Category{
	{Name: "toxicity", Cases: "toxicity", Detector: detector.NameToxicity},
	{Name: "jailbreak_rate", Cases: "jailbreaks", Detector: detector.NameJailbreak},
	{Name: "hallucination_rate", Cases: "hallucinations", Detector: detector.NameFabrication},
}

func resolveCategories(explicit []Category, cases []CaseFile, policy types.Policy) ([]Category, error) {
	has := make(map[string]bool, len(cases))
	for _, cf := range cases {
		has[cf.Key] = true
	}

	if len(explicit) > 0 {
		seen := map[string]bool{}
		out := make([]Category, 0, len(explicit))
		for _, c := range explicit {
			if c.Cases == "" {
				c.Cases = c.Name
			}
			if seen[c.Name] {
				return nil, fmt.Errorf("category %s declared twice", c.Name)
			}
			seen[c.Name] = true
			if !has[c.Cases] {
				return nil, fmt.Errorf("category %s: no cases entry %q", c.Name, c.Cases)
			}
			out = append(out, c)
		}
		return out, nil
	}

	byCases := map[string]Category{}
	byName := map[string]Category{}
	for _, c := range legacyCategories {
		byCases[c.Cases] = c
		byName[c.Name] = c
	}

	used := map[string]bool{}
	out := []Category{}
	for _, tp := range policy {
		c, ok := byName[tp.Category]
		if !ok || !has[c.Cases] || used[c.Cases] {
			continue
		}
		used[c.Cases] = true
		out = append(out, c)
	}
	for _, cf := range cases {
		if used[cf.Key] {
			continue
		}
		c, ok := byCases[cf.Key]
		if !ok {
			if _, known := detector.Builtins[cf.Key]; !known {
				return nil, fmt.Errorf("cases.%s: no category uses it; declare it under categories", cf.Key)
			}
			c = Category{Name: cf.Key, Cases: cf.Key, Detector: cf.Key}
		}
		used[cf.Key] = true
		out = append(out, c)
	}
	return out, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", field)
	}
	return d, nil
}

func resolvePath(configPath, candidate string) string {
	if candidate == "" || filepath.IsAbs(candidate) {
		return candidate
	}
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	joined := filepath.Clean(filepath.Join(filepath.Dir(configPath), candidate))
	if _, err := os.Stat(joined); err == nil {
		return joined
	}
	return candidate
}
