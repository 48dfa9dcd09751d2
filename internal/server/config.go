package server

import "github.com/ogulcanaydogan/llm-audit-gate/internal/detector"

// Config holds the scan server settings.
type Config struct {
	Port            int
	CacheTTLSeconds int
	// ToxicityCeiling overrides the toxicity scanner threshold when set.
	ToxicityCeiling *float64
	Detectors       detector.Settings
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		CacheTTLSeconds: 300,
		Detectors:       detector.DefaultSettings(),
	}
}
