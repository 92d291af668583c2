package sandbox

import (
	"fmt"
	"time"
)

// ErrorKind classifies sandbox failures. All of them are expected, recoverable
// outcomes that feed back into the refinement loop; none are fatal to the
// host process.
type ErrorKind int

const (
	ErrValidationBlocked ErrorKind = iota // denylisted construct found before execution
	ErrTimeout                            // wall-clock deadline exceeded
	ErrSyntax                             // program does not parse
	ErrMissingResult                      // program never bound the result variable
	ErrWrongResultType                    // result bound to a non-table value
	ErrRuntime                            // program failed while running
)

func (k ErrorKind) String() string {
	switch k {
	case ErrValidationBlocked:
		return "validation_blocked"
	case ErrTimeout:
		return "timeout"
	case ErrSyntax:
		return "syntax_error"
	case ErrMissingResult:
		return "missing_result"
	case ErrWrongResultType:
		return "wrong_result_type"
	case ErrRuntime:
		return "runtime_error"
	default:
		return "unknown"
	}
}

// Error describes a single sandbox failure.
type Error struct {
	Kind     ErrorKind
	Message  string
	Fragment string // offending source fragment, for validation failures
	Line     int    // 1-based source line, for syntax errors (0 if unknown)
}

func (e *Error) Error() string {
	switch {
	case e.Fragment != "":
		return fmt.Sprintf("%s: %s (found %q)", e.Kind, e.Message, e.Fragment)
	case e.Line > 0:
		return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Message, e.Line)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Outcome is the result of one sandbox run. Produced once, never mutated.
type Outcome struct {
	Success bool
	Err     *Error

	Matched    []map[string]any
	UnmatchedA []map[string]any
	UnmatchedB []map[string]any

	MatchCount int
	TotalA     int
	TotalB     int
	MatchRate  float64

	Duration time.Duration
}

// ErrorText returns the failure description, or "" on success.
func (o *Outcome) ErrorText() string {
	if o == nil || o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
