// Package pipeline holds the plumbing shared by every build stage: the error
// taxonomy and its exit codes, run summaries, and atomic artifact IO.
package pipeline

import "errors"

// Sentinel errors. Stages wrap these with fmt.Errorf("...: %w", ...) so the
// CLI can classify a failure without inspecting messages.
var (
	ErrConfig              = errors.New("configuration error")
	ErrMissingInput        = errors.New("missing input")
	ErrInputFormat         = errors.New("input format error")
	ErrEmptyResult         = errors.New("empty result")
	ErrPartialLoad         = errors.New("partial load")
	ErrConstraintViolation = errors.New("graph constraint violation")
	ErrLoadOrder           = errors.New("bridge loaded before its foreign keys")
)

// Exit codes of the medkg CLI.
const (
	ExitOK           = 0
	ExitConfig       = 1
	ExitMissingInput = 2
	ExitPartialLoad  = 3
)

// ExitCode maps an error returned by a stage to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrMissingInput), errors.Is(err, ErrInputFormat), errors.Is(err, ErrEmptyResult):
		return ExitMissingInput
	case errors.Is(err, ErrPartialLoad), errors.Is(err, ErrConstraintViolation), errors.Is(err, ErrLoadOrder):
		return ExitPartialLoad
	default:
		return ExitConfig
	}
}
