// Package sandbox executes model-generated matching programs against two
// tables inside a capability-restricted yaegi interpreter.
//
// Programs run with a whitelist-only symbol table, copies of the input
// tables, and no import surface; the denylist scan in validate.go is
// defense-in-depth on top of that. Every invocation starts from a fresh
// interpreter, so no run can observe or poison another's state. A hard
// wall-clock deadline bounds each run regardless of what the program does,
// and the host process survives every failure mode.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/traefik/yaegi/interp"

	"github.com/WeiKhjan/reconciliation-agent/internal/logging"
	"github.com/WeiKhjan/reconciliation-agent/internal/table"
)

// DefaultTimeout bounds a single program run unless configured otherwise.
const DefaultTimeout = 30 * time.Second

// resultVar is the variable the program must bind with the matched table.
// unmatchedAVar and unmatchedBVar are optional remainder bindings.
const (
	resultVar     = "result"
	unmatchedAVar = "unmatchedA"
	unmatchedBVar = "unmatchedB"
)

// Sandbox runs candidate matching programs. Safe for concurrent use; each
// execution is fully isolated.
type Sandbox struct {
	timeout time.Duration
}

// New returns a sandbox with the given per-run timeout. Non-positive values
// fall back to DefaultTimeout.
func New(timeout time.Duration) *Sandbox {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sandbox{timeout: timeout}
}

// Execute validates and runs a program against copies of the two tables and
// returns the outcome. It never returns a Go error: every failure mode is
// folded into the outcome's taxonomy so the refinement loop can react.
func (s *Sandbox) Execute(ctx context.Context, code string, tableA, tableB *table.Table) *Outcome {
	started := time.Now()
	totalA, totalB := tableA.Len(), tableB.Len()

	fail := func(e *Error) *Outcome {
		logging.SandboxWarn("execution failed: %s", e.Error())
		return &Outcome{
			Success:  false,
			Err:      e,
			TotalA:   totalA,
			TotalB:   totalB,
			Duration: time.Since(started),
		}
	}

	code = StripFences(code)
	if verr := validate(code); verr != nil {
		return fail(verr)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The interpreter runs in its own goroutine so the deadline is enforced
	// from outside: EvalWithContext aborts interpreted code when the context
	// expires, and the select below regains control even if the program is
	// wedged inside a native call.
	done := make(chan *Outcome, 1)
	go func() {
		done <- s.run(runCtx, code, tableA, tableB, started)
	}()

	select {
	case out := <-done:
		if out.Err != nil {
			return fail(out.Err)
		}
		logging.Sandbox("execution succeeded: matched %d/%d rows (rate %.2f) in %s",
			out.MatchCount, out.TotalA, out.MatchRate, out.Duration)
		return out
	case <-runCtx.Done():
		return fail(&Error{
			Kind:    ErrTimeout,
			Message: fmt.Sprintf("execution exceeded the %s time budget", s.timeout),
		})
	}
}

// run performs the interpreted execution. It only ever communicates failures
// through the returned outcome's Err field.
func (s *Sandbox) run(ctx context.Context, code string, tableA, tableB *table.Table, started time.Time) (out *Outcome) {
	totalA, totalB := tableA.Len(), tableB.Len()
	out = &Outcome{TotalA: totalA, TotalB: totalB}

	defer func() {
		if r := recover(); r != nil {
			out = &Outcome{
				TotalA: totalA,
				TotalB: totalB,
				Err:    &Error{Kind: ErrRuntime, Message: fmt.Sprintf("program panicked: %v", r)},
			}
		}
		out.Duration = time.Since(started)
	}()

	i := interp.New(interp.Options{})
	if err := i.Use(restrictedSymbols()); err != nil {
		out.Err = &Error{Kind: ErrRuntime, Message: fmt.Sprintf("sandbox setup: %v", err)}
		return out
	}
	if err := i.Use(frameExports()); err != nil {
		out.Err = &Error{Kind: ErrRuntime, Message: fmt.Sprintf("sandbox setup: %v", err)}
		return out
	}
	if err := i.Use(envExports(tableA.Copy().Records(), tableB.Copy().Records())); err != nil {
		out.Err = &Error{Kind: ErrRuntime, Message: fmt.Sprintf("sandbox setup: %v", err)}
		return out
	}
	if _, err := i.Eval(prelude); err != nil {
		out.Err = &Error{Kind: ErrRuntime, Message: fmt.Sprintf("sandbox prelude: %v", err)}
		return out
	}

	if _, err := i.EvalWithContext(ctx, code); err != nil {
		if ctx.Err() != nil {
			out.Err = &Error{Kind: ErrTimeout, Message: fmt.Sprintf("execution exceeded the %s time budget", s.timeout)}
			return out
		}
		out.Err = &Error{Kind: ErrRuntime, Message: err.Error()}
		return out
	}

	resultVal, err := i.Eval(resultVar)
	if err != nil {
		out.Err = &Error{
			Kind:    ErrMissingResult,
			Message: fmt.Sprintf("program did not bind the %q variable with the matched table", resultVar),
		}
		return out
	}
	matched, ok := toRecords(resultVal.Interface())
	if !ok {
		out.Err = &Error{
			Kind:    ErrWrongResultType,
			Message: fmt.Sprintf("%q must be a []map[string]interface{} table, got %T", resultVar, resultVal.Interface()),
		}
		return out
	}

	out.Matched = sanitizeRecords(matched)
	out.UnmatchedA = sanitizeRecords(optionalRecords(i, unmatchedAVar))
	out.UnmatchedB = sanitizeRecords(optionalRecords(i, unmatchedBVar))

	out.MatchCount = len(out.Matched)
	out.MatchRate = matchRate(out.MatchCount, totalA)
	out.Success = true
	return out
}

// matchRate derives matched/total clamped to [0, 1]; an empty first table
// yields 0 rather than a division by zero.
func matchRate(matched, totalA int) float64 {
	if totalA <= 0 {
		return 0.0
	}
	rate := float64(matched) / float64(totalA)
	if rate > 1.0 {
		rate = 1.0
	}
	return rate
}

// optionalRecords extracts an optional table binding; absent or malformed
// bindings degrade to an empty table rather than failing the run.
func optionalRecords(i *interp.Interpreter, name string) []map[string]any {
	v, err := i.Eval(name)
	if err != nil {
		return []map[string]any{}
	}
	recs, ok := toRecords(v.Interface())
	if !ok {
		return []map[string]any{}
	}
	return recs
}

// toRecords accepts the table shapes a program can plausibly build.
func toRecords(v any) ([]map[string]any, bool) {
	switch rows := v.(type) {
	case []map[string]any:
		return rows, true
	case []table.Row:
		out := make([]map[string]any, 0, len(rows))
		for _, r := range rows {
			out = append(out, map[string]any(r))
		}
		return out, true
	case []any:
		out := make([]map[string]any, 0, len(rows))
		for _, e := range rows {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	default:
		return nil, false
	}
}

// sanitizeRecords substitutes the missing-cell placeholder for nil values so
// every outcome serializes cleanly.
func sanitizeRecords(recs []map[string]any) []map[string]any {
	if recs == nil {
		return []map[string]any{}
	}
	for _, rec := range recs {
		for k, v := range rec {
			if v == nil {
				rec[k] = table.MissingCell
			}
		}
	}
	return recs
}
