// Package evaluate turns one execution outcome plus loop counters into a
// control decision for the reconciliation loop.
package evaluate

// DefaultThreshold is the match rate at which a session is considered done.
const DefaultThreshold = 0.95

// Decision is the evaluator's verdict on one iteration.
type Decision int

const (
	DecisionRetry         Decision = iota // loop back to code generation
	DecisionComplete                      // threshold met, halt
	DecisionAwaitFeedback                 // iteration budget exhausted, pause for human input
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionComplete:
		return "complete"
	case DecisionAwaitFeedback:
		return "awaiting_feedback"
	default:
		return "unknown"
	}
}

// Evaluator holds the completion threshold.
type Evaluator struct {
	Threshold float64
}

// New returns an evaluator; non-positive thresholds fall back to the default.
func New(threshold float64) Evaluator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Evaluator{Threshold: threshold}
}

// Decide applies the decision rule in order: a clean run at or above the
// threshold completes; an exhausted iteration budget pauses for feedback;
// everything else retries, whether the cause was an error or a low match
// rate. Pure and deterministic.
func (e Evaluator) Decide(failed bool, matchRate float64, iterations, maxIterations int) Decision {
	if !failed && matchRate >= e.Threshold {
		return DecisionComplete
	}
	if iterations >= maxIterations {
		return DecisionAwaitFeedback
	}
	return DecisionRetry
}
