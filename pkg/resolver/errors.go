package resolver

import (
	"fmt"
	"strings"
)

// ErrorKind classifies resolution failures.
type ErrorKind string

const (
	// ErrMalformedReference means a linked_to value did not match the
	// PROJECT:VAR pattern.
	ErrMalformedReference ErrorKind = "malformed_reference"
	// ErrMalformedConcatenation means a concat_parts value could not be
	// parsed (unterminated quote, invalid reference token).
	ErrMalformedConcatenation ErrorKind = "malformed_concatenation"
	// ErrDanglingReference means a reference points at a project/variable
	// that does not exist in the snapshot.
	ErrDanglingReference ErrorKind = "dangling_reference"
	// ErrCircularReference means the variable participates in a reference
	// cycle.
	ErrCircularReference ErrorKind = "circular_reference"
	// ErrAmbiguousValueKind means the stored record did not have exactly
	// one of raw_value, linked_to, concat_parts set.
	ErrAmbiguousValueKind ErrorKind = "ambiguous_value_kind"
)

// ResolutionError is a per-variable resolution failure. Errors are data:
// they are returned in result maps, never used for control flow between
// unrelated variables.
type ResolutionError struct {
	Kind    ErrorKind    `json:"kind"`
	Message string       `json:"message"`
	Cycle   []VariableID `json:"cycle,omitempty"`
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...interface{}) *ResolutionError {
	return &ResolutionError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// cycleError builds a CircularReference error describing the given path,
// ordered from the start of the cycle back to itself.
func cycleError(path []VariableID) *ResolutionError {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = id.String()
	}
	return &ResolutionError{
		Kind:    ErrCircularReference,
		Message: fmt.Sprintf("circular reference: %s", strings.Join(parts, " -> ")),
		Cycle:   path,
	}
}

// inheritedError wraps a dependency's failure for the dependent variable.
// The kind is carried through so callers can still classify the root cause.
func inheritedError(dependent, dependency VariableID, cause *ResolutionError) *ResolutionError {
	return &ResolutionError{
		Kind:    cause.Kind,
		Message: fmt.Sprintf("%s depends on %s: %s", dependent, dependency, cause.Message),
		Cycle:   cause.Cycle,
	}
}
