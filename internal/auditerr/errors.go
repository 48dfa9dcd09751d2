// Package auditerr defines the error kinds that decide how a run terminates.
package auditerr

import (
	"errors"
	"fmt"
)

// UsageError reports malformed or missing command-line input. It is raised
// before any case is evaluated.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// Usage builds a UsageError from a format string.
func Usage(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// LoadError reports an unreadable or malformed configuration or case file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load: %v", e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load wraps err as a LoadError for path. A nil err yields nil.
func Load(path string, err error) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{Path: path, Err: err}
}

// DetectorError reports that a detector, or the model call feeding it, could
// not produce a finding. It aborts the whole run.
type DetectorError struct {
	Detector string
	Category string
	// Index is the position of the failing case within its category, or -1
	// when the failure is not tied to one case.
	Index int
	Err   error
}

func (e *DetectorError) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("detector %s: %v", e.Detector, e.Err)
	}
	if e.Index < 0 {
		return fmt.Sprintf("detector %s (category %s): %v", e.Detector, e.Category, e.Err)
	}
	return fmt.Sprintf("detector %s (category %s, case %d): %v", e.Detector, e.Category, e.Index, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

// Detector wraps err as a DetectorError not bound to a case.
func Detector(name string, err error) error {
	if err == nil {
		return nil
	}
	return &DetectorError{Detector: name, Index: -1, Err: err}
}

func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

func IsLoad(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

func IsDetector(err error) bool {
	var de *DetectorError
	return errors.As(err, &de)
}
