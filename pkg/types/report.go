package types

// Report wraps a verdict with run provenance. Only Verdict is covered by
// VerdictDigest; RunID and GeneratedAt change on every invocation.
type Report struct {
	SchemaVersion string    `json:"schema_version"`
	RunID         string    `json:"run_id"`
	Tool          string    `json:"tool"`
	GeneratedAt   string    `json:"generated_at"`
	VerdictDigest string    `json:"verdict_digest"`
	ExitCode      int       `json:"exit_code"`
	Inputs        []Subject `json:"inputs,omitempty"`
	Verdict       Verdict   `json:"verdict"`
}

// Subject identifies an input file by content digest.
type Subject struct {
	Name      string `json:"name"`
	URI       string `json:"uri"`
	Digest    Digest `json:"digest"`
	SizeBytes int64  `json:"size_bytes"`
}

type Digest struct {
	SHA256 string `json:"sha256"`
}
