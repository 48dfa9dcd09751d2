package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/auditerr"
)

const (
	EnvModelEndpoint = "AUDITGATE_MODEL_ENDPOINT"
	EnvWorkers       = "AUDITGATE_WORKERS"
	EnvCaseTimeout   = "AUDITGATE_CASE_TIMEOUT"
	EnvLogLevel      = "AUDITGATE_LOG_LEVEL"
	EnvLogFormat     = "AUDITGATE_LOG_FORMAT"
)

// Overrides carries values from the environment or command-line flags.
// Zero values leave the configuration untouched.
type Overrides struct {
	ModelEndpoint string
	Workers       int
	CaseTimeout   time.Duration
}

// OverridesFromEnv reads the AUDITGATE_* variables. Malformed values are
// usage errors.
func OverridesFromEnv() (Overrides, error) {
	var ov Overrides
	ov.ModelEndpoint = strings.TrimSpace(os.Getenv(EnvModelEndpoint))
	if v := strings.TrimSpace(os.Getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Overrides{}, auditerr.Usage("%s must be a positive integer (got %q)", EnvWorkers, v)
		}
		ov.Workers = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvCaseTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Overrides{}, auditerr.Usage("%s must be a positive duration (got %q)", EnvCaseTimeout, v)
		}
		ov.CaseTimeout = d
	}
	return ov, nil
}

// Apply layers ov on top of c.
func (c *Config) Apply(ov Overrides) error {
	if ov.ModelEndpoint != "" {
		c.Model.Endpoint = ov.ModelEndpoint
	}
	if ov.Workers != 0 {
		if ov.Workers < 1 || ov.Workers > 64 {
			return auditerr.Usage("workers must be between 1 and 64 (got %d)", ov.Workers)
		}
		c.Run.Workers = ov.Workers
	}
	if ov.CaseTimeout != 0 {
		if ov.CaseTimeout < 0 {
			return auditerr.Usage("case timeout must be positive (got %s)", ov.CaseTimeout)
		}
		c.Run.CaseTimeout = ov.CaseTimeout
	}
	return nil
}

// EnvDefault returns the environment value for key, or fallback.
func EnvDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
