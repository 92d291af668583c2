package reconcile

import "fmt"

// Status is the closed set of session lifecycle states.
type Status string

const (
	StatusCreated          Status = "created"
	StatusUploaded         Status = "uploaded"
	StatusAnalyzing        Status = "analyzing"
	StatusGenerating       Status = "generating"
	StatusExecuting        Status = "executing"
	StatusEvaluating       Status = "evaluating"
	StatusAwaitingFeedback Status = "awaiting_feedback"
	StatusRefining         Status = "refining"
	StatusComplete         Status = "complete"
	StatusError            Status = "error"
)

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusUploaded, StatusAnalyzing, StatusGenerating,
		StatusExecuting, StatusEvaluating, StatusAwaitingFeedback,
		StatusRefining, StatusComplete, StatusError:
		return true
	}
	return false
}

// Halted reports whether the loop is stopped in this state, either done or
// waiting on human input.
func (s Status) Halted() bool {
	return s == StatusComplete || s == StatusAwaitingFeedback || s == StatusError
}

// Event drives status transitions.
type Event string

const (
	EventUpload    Event = "upload"    // tables attached
	EventStart     Event = "start"     // loop started
	EventAnalyzed  Event = "analyzed"  // schema analysis + strategy recorded
	EventGenerated Event = "generated" // program text received
	EventExecuted  Event = "executed"  // sandbox outcome folded in
	EventRetry     Event = "retry"     // evaluator wants another attempt
	EventComplete  Event = "complete"  // evaluator satisfied
	EventExhausted Event = "exhausted" // iteration budget spent
	EventFeedback  Event = "feedback"  // user supplied corrective text
	EventResume    Event = "resume"    // refinement re-enters generation
	EventFail      Event = "fail"      // unrecoverable non-sandbox error
)

// transitions is the complete state machine. Anything not listed is an
// invalid transition.
var transitions = map[Status]map[Event]Status{
	StatusCreated: {
		EventUpload: StatusUploaded,
	},
	StatusUploaded: {
		EventStart: StatusAnalyzing,
	},
	StatusAnalyzing: {
		EventAnalyzed: StatusGenerating,
	},
	StatusGenerating: {
		EventGenerated: StatusExecuting,
	},
	StatusExecuting: {
		EventExecuted: StatusEvaluating,
	},
	StatusEvaluating: {
		EventRetry:     StatusGenerating,
		EventComplete:  StatusComplete,
		EventExhausted: StatusAwaitingFeedback,
	},
	StatusAwaitingFeedback: {
		EventFeedback: StatusRefining,
	},
	StatusComplete: {
		EventFeedback: StatusRefining,
	},
	StatusRefining: {
		EventResume: StatusGenerating,
	},
}

// Next is the pure transition function. EventFail is accepted from any
// non-error state; the error state is terminal except through a new feedback
// cycle, which is not modeled as a transition out of error.
func Next(s Status, e Event) (Status, error) {
	if e == EventFail {
		if s == StatusError {
			return s, fmt.Errorf("session already in error state")
		}
		return StatusError, nil
	}
	next, ok := transitions[s][e]
	if !ok {
		return s, fmt.Errorf("invalid transition: %s event in %s state", e, s)
	}
	return next, nil
}
