package reconcile

import (
	"fmt"
	"sync"
	"time"

	"github.com/WeiKhjan/reconciliation-agent/internal/sandbox"
	"github.com/WeiKhjan/reconciliation-agent/internal/table"
)

// maxCodeHistory bounds how many superseded programs a session retains.
const maxCodeHistory = 20

// TraceEntry is one line of the session's append-only reasoning trace.
type TraceEntry struct {
	Time    time.Time
	Stage   Status
	Message string
}

func (e TraceEntry) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Time.Format("15:04:05"), e.Stage, e.Message)
}

// Session holds everything one reconciliation run knows. The input tables
// and hint are immutable once set; everything else is mutated exclusively by
// the orchestrator's step functions and guarded by the session mutex so
// status polls always observe a consistent view.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time

	tableA *table.Table
	tableB *table.Table
	hint   string

	feedback string

	iterations      int
	maxIterations   int
	iterationBudget int // per-cycle allowance granted again on feedback

	status Status

	code        string
	codeHistory []string
	analysis    string
	strategy    string

	lastOutcome *sandbox.Outcome
	lastError   string
	matchRate   float64

	trace []TraceEntry
}

// NewSession creates a session in the created state.
func NewSession(id string, maxIterations int) *Session {
	if maxIterations < 1 {
		maxIterations = 5
	}
	s := &Session{
		id:              id,
		createdAt:       time.Now(),
		status:          StatusCreated,
		maxIterations:   maxIterations,
		iterationBudget: maxIterations,
	}
	s.trace = append(s.trace, TraceEntry{Time: time.Now(), Stage: StatusCreated, Message: "session created"})
	return s
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// AttachTables stores the two input tables. Tables are immutable once
// uploaded; attaching twice is an error.
func (s *Session) AttachTables(a, b *table.Table) error {
	if a == nil || b == nil {
		return fmt.Errorf("both tables are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCreated {
		return fmt.Errorf("tables already attached (status %s)", s.status)
	}
	next, err := Next(s.status, EventUpload)
	if err != nil {
		return err
	}
	s.tableA = a
	s.tableB = b
	s.status = next
	s.appendTraceLocked(next, "tables attached: %d rows vs %d rows", a.Len(), b.Len())
	return nil
}

// SetHint records the optional user hint. Immutable once set.
func (s *Session) SetHint(hint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hint == "" {
		s.hint = hint
	}
}

// Tables returns the immutable input tables.
func (s *Session) Tables() (*table.Table, *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tableA, s.tableB
}

// HasTables reports whether both tables are attached.
func (s *Session) HasTables() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tableA != nil && s.tableB != nil
}

// apply runs one transition and appends exactly one trace entry for it.
func (s *Session) apply(e Event, format string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Next(s.status, e)
	if err != nil {
		return err
	}
	s.status = next
	s.appendTraceLocked(next, format, args...)
	return nil
}

// addTrace appends a narrative entry without changing status.
func (s *Session) addTrace(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendTraceLocked(s.status, format, args...)
}

func (s *Session) appendTraceLocked(stage Status, format string, args ...any) {
	s.trace = append(s.trace, TraceEntry{
		Time:    time.Now(),
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	})
}

// fail moves the session to the terminal error state, retaining the message.
func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, terr := Next(s.status, EventFail)
	if terr != nil {
		return
	}
	s.status = next
	s.lastError = err.Error()
	s.appendTraceLocked(next, "unrecoverable error: %v", err)
}

// setAnalysis records the analyst's narrative.
func (s *Session) setAnalysis(analysis string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = analysis
	s.appendTraceLocked(s.status, "schema analysis:\n%s", analysis)
}

// setStrategy records the strategist's narrative.
func (s *Session) setStrategy(strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy = strategy
	s.appendTraceLocked(s.status, "matching strategy:\n%s", strategy)
}

// beginIteration advances the iteration counter and clears the previous
// error, per the generating step's contract. Returns the new counter value.
func (s *Session) beginIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterations++
	s.lastError = ""
	return s.iterations
}

// setCode installs newly generated program text, pushing the superseded
// program into the bounded history. The history never contains the
// currently active code.
func (s *Session) setCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code != "" {
		s.codeHistory = append(s.codeHistory, s.code)
		if len(s.codeHistory) > maxCodeHistory {
			s.codeHistory = s.codeHistory[len(s.codeHistory)-maxCodeHistory:]
		}
	}
	s.code = code
}

// Code returns the most recent generated program text.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// recordOutcome folds one sandbox outcome into the session.
func (s *Session) recordOutcome(out *sandbox.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOutcome = out
	s.matchRate = out.MatchRate
	if out.Success {
		s.lastError = ""
		return
	}
	s.lastError = out.ErrorText()
}

// evalInputs returns the values the evaluator decides on.
func (s *Session) evalInputs() (failed bool, matchRate float64, iterations, maxIterations int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	failed = s.lastOutcome == nil || !s.lastOutcome.Success
	return failed, s.matchRate, s.iterations, s.maxIterations
}

// SetFeedback ingests corrective text while halted in awaiting_feedback or
// complete. The iteration counter is never reset; instead the bound is
// raised by one full per-cycle budget so the refinement gets a fresh
// allowance. The feedback text lands in the trace verbatim.
func (s *Session) SetFeedback(feedback string) error {
	if feedback == "" {
		return fmt.Errorf("feedback text is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Next(s.status, EventFeedback)
	if err != nil {
		return err
	}
	s.status = next
	s.feedback = feedback
	s.maxIterations += s.iterationBudget
	s.appendTraceLocked(next, "%s", feedback)
	return nil
}

// promptInputs snapshots everything prompt builders need.
func (s *Session) promptInputs() (hint, feedback, priorError, priorCode, analysis, strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hint, s.feedback, s.lastError, s.code, s.analysis, s.strategy
}

// Snapshot is a consistent view for status polling.
type Snapshot struct {
	ID            string
	Status        Status
	Iterations    int
	MaxIterations int
	MatchRate     float64
	LastMessage   string
	LastError     string
}

// Snapshot returns the last known good state plus the most recent error
// text, if any. Callers never observe a half-updated session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:            s.id,
		Status:        s.status,
		Iterations:    s.iterations,
		MaxIterations: s.maxIterations,
		MatchRate:     s.matchRate,
		LastError:     s.lastError,
	}
	if n := len(s.trace); n > 0 {
		snap.LastMessage = s.trace[n-1].Message
	}
	return snap
}

// Results is the full output of a session's most recent execution.
type Results struct {
	Status         Status
	MatchRate      float64
	MatchCount     int
	TotalA         int
	TotalB         int
	Matched        []map[string]any
	UnmatchedA     []map[string]any
	UnmatchedB     []map[string]any
	GeneratedCode  string
	Iterations     int
	ReasoningTrace []string
}

// Results returns the session's results, or false when the loop has not
// produced an execution outcome yet.
func (s *Session) Results() (*Results, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastOutcome == nil {
		return nil, false
	}
	trace := make([]string, 0, len(s.trace))
	for _, e := range s.trace {
		trace = append(trace, e.String())
	}
	return &Results{
		Status:         s.status,
		MatchRate:      s.lastOutcome.MatchRate,
		MatchCount:     s.lastOutcome.MatchCount,
		TotalA:         s.lastOutcome.TotalA,
		TotalB:         s.lastOutcome.TotalB,
		Matched:        s.lastOutcome.Matched,
		UnmatchedA:     s.lastOutcome.UnmatchedA,
		UnmatchedB:     s.lastOutcome.UnmatchedB,
		GeneratedCode:  s.code,
		Iterations:     s.iterations,
		ReasoningTrace: trace,
	}, true
}

// Trace returns the rendered reasoning trace.
func (s *Session) Trace() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.trace))
	for _, e := range s.trace {
		out = append(out, e.String())
	}
	return out
}
