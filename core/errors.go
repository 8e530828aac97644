package core

import "fmt"

// Fatal condition codes attached to terminal error events.
const (
	// FatalConfig marks an unrecoverable configuration problem.
	FatalConfig = "FATAL_CONFIG"
	// FatalArtifact marks a required artifact that stayed invalid after its
	// single repair attempt.
	FatalArtifact = "FATAL_ARTIFACT"
)

// ConfigError reports an invalid meeting or run configuration. It is
// surfaced immediately from Start; the run never begins.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration (%s): %s", e.Field, e.Reason)
}

// AdapterError reports that a single speaker invocation failed or timed out.
// It is contained to that speaker: one automatic retry, then the speaker is
// skipped for the round.
type AdapterError struct {
	Speaker string
	Round   int
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("speaker %s failed in round %d: %v", e.Speaker, e.Round, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *AdapterError) Unwrap() error { return e.Err }

// ValidationError reports a schema mismatch on a role output, a candidate
// artifact, or resume answers. Problems holds one entry per violated field.
type ValidationError struct {
	Subject  string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("%s failed validation", e.Subject)
	}
	msg := fmt.Sprintf("%s failed validation: %s", e.Subject, e.Problems[0])
	if n := len(e.Problems) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

// NewValidationError builds a ValidationError for subject with the listed
// problems.
func NewValidationError(subject string, problems ...string) *ValidationError {
	return &ValidationError{Subject: subject, Problems: problems}
}

// TokenError reports a stale, consumed or superseded resume token. The run
// stays PAUSED and no state is mutated.
type TokenError struct {
	RunID  string
	Reason string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("resume token rejected for run %s: %s", e.RunID, e.Reason)
}
