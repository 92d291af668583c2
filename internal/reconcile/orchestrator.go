// Package reconcile implements the iterative generate → execute → evaluate
// loop that discovers a matching procedure between two tables: a sequential
// state machine coordinating schema analysis, strategy formulation, code
// generation, sandboxed execution, evaluation, and feedback-driven
// refinement.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WeiKhjan/reconciliation-agent/internal/evaluate"
	"github.com/WeiKhjan/reconciliation-agent/internal/llm"
	"github.com/WeiKhjan/reconciliation-agent/internal/logging"
	"github.com/WeiKhjan/reconciliation-agent/internal/sandbox"
)

// Config tunes the orchestrator.
type Config struct {
	MaxIterations  int
	MatchThreshold float64
	PreviewRows    int
	SandboxTimeout time.Duration
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  5,
		MatchThreshold: evaluate.DefaultThreshold,
		PreviewRows:    10,
		SandboxTimeout: sandbox.DefaultTimeout,
	}
}

// Orchestrator drives sessions through the reconciliation state machine.
// One orchestrator serves many sessions; per-session state lives entirely in
// the Session.
type Orchestrator struct {
	client      llm.Client
	sandbox     *sandbox.Sandbox
	evaluator   evaluate.Evaluator
	previewRows int
	maxIter     int
}

// New creates an orchestrator.
func New(client llm.Client, cfg Config) *Orchestrator {
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 5
	}
	if cfg.PreviewRows < 1 {
		cfg.PreviewRows = 10
	}
	return &Orchestrator{
		client:      client,
		sandbox:     sandbox.New(cfg.SandboxTimeout),
		evaluator:   evaluate.New(cfg.MatchThreshold),
		previewRows: cfg.PreviewRows,
		maxIter:     cfg.MaxIterations,
	}
}

// MaxIterations returns the configured per-cycle iteration budget.
func (o *Orchestrator) MaxIterations() int { return o.maxIter }

// Run takes an uploaded session through analysis, strategy, and the
// generate → execute → evaluate loop until it halts. Collaborator failures
// mark the session errored and are returned; sandbox failures stay inside
// the loop. A canceled context stops the run without touching the session
// further.
func (o *Orchestrator) Run(ctx context.Context, s *Session) error {
	if !s.HasTables() {
		return fmt.Errorf("session %s has no tables attached", s.ID())
	}
	if err := s.apply(EventStart, "reconciliation started (max %d iterations)", o.maxIter); err != nil {
		return err
	}
	logging.Agent("[%s] reconciliation started", s.ID())

	if err := o.analyze(ctx, s); err != nil {
		return o.failSession(s, err)
	}
	return o.loop(ctx, s)
}

// Resume ingests feedback on a halted session and re-enters the loop at code
// generation. The iteration counter keeps accumulating; SetFeedback grants a
// fresh per-cycle allowance.
func (o *Orchestrator) Resume(ctx context.Context, s *Session, feedback string) error {
	if err := s.SetFeedback(feedback); err != nil {
		return err
	}
	logging.Agent("[%s] feedback received, refining", s.ID())
	if err := s.apply(EventResume, "re-entering code generation with user feedback"); err != nil {
		return o.failSession(s, err)
	}
	return o.loop(ctx, s)
}

// loop runs generate → execute → evaluate until the evaluator halts it.
// Entry condition: session status is generating.
func (o *Orchestrator) loop(ctx context.Context, s *Session) error {
	for {
		if err := ctx.Err(); err != nil {
			// Session deleted or host shutting down: stop without further
			// trace mutation.
			return err
		}

		if err := o.generate(ctx, s); err != nil {
			return o.failSession(s, err)
		}
		o.execute(ctx, s)

		decision, err := o.evaluateStep(s)
		if err != nil {
			return o.failSession(s, err)
		}
		if decision != evaluate.DecisionRetry {
			logging.Agent("[%s] loop halted: %s", s.ID(), decision)
			return nil
		}
	}
}

// analyze requests the structural comparison and matching strategy from the
// collaborator and records both narratives.
func (o *Orchestrator) analyze(ctx context.Context, s *Session) error {
	pc := o.promptContext(s)

	analysis, err := o.client.CompleteWithSystem(ctx, llm.AnalystSystemPrompt, llm.BuildAnalysisPrompt(pc))
	if err != nil {
		return fmt.Errorf("schema analysis failed: %w", err)
	}
	s.setAnalysis(analysis)
	logging.AgentDebug("[%s] schema analysis complete (%d chars)", s.ID(), len(analysis))

	pc.Analysis = analysis
	strategy, err := o.client.CompleteWithSystem(ctx, llm.StrategistSystemPrompt, llm.BuildStrategyPrompt(pc))
	if err != nil {
		return fmt.Errorf("strategy formulation failed: %w", err)
	}
	s.setStrategy(strategy)
	logging.AgentDebug("[%s] matching strategy recorded", s.ID())

	return s.apply(EventAnalyzed, "analysis and strategy complete, generating code")
}

// generate requests program text, supplying prior error text when retrying
// after a failure and feedback text when refining.
func (o *Orchestrator) generate(ctx context.Context, s *Session) error {
	pc := o.promptContext(s)

	iteration := s.beginIteration()
	logging.Agent("[%s] generating code (iteration %d)", s.ID(), iteration)

	code, err := o.client.CompleteWithSystem(ctx, llm.CoderSystemPrompt, llm.BuildCodePrompt(pc))
	if err != nil {
		return fmt.Errorf("code generation failed: %w", err)
	}
	s.setCode(code)
	s.addTrace("generated code (iteration %d):\n%s", iteration, code)

	return s.apply(EventGenerated, "code ready, executing in sandbox")
}

// execute runs the current program in the sandbox and folds the outcome in.
// Sandbox failures are recoverable loop inputs, never returned as errors.
func (o *Orchestrator) execute(ctx context.Context, s *Session) {
	a, b := s.Tables()
	// Session deletion cancels the loop at step boundaries only; an
	// in-flight run finishes on the sandbox's own timeout.
	out := o.sandbox.Execute(context.WithoutCancel(ctx), s.Code(), a, b)
	s.recordOutcome(out)

	if out.Success {
		_ = s.apply(EventExecuted, "execution succeeded: matched %d of %d rows (rate %.2f%%)",
			out.MatchCount, out.TotalA, out.MatchRate*100)
		return
	}
	_ = s.apply(EventExecuted, "execution failed: %s", out.ErrorText())
}

// evaluateStep applies the evaluator's decision to the state machine.
func (o *Orchestrator) evaluateStep(s *Session) (evaluate.Decision, error) {
	failed, rate, iterations, maxIterations := s.evalInputs()
	decision := o.evaluator.Decide(failed, rate, iterations, maxIterations)

	switch decision {
	case evaluate.DecisionComplete:
		return decision, s.apply(EventComplete,
			"complete: match rate %.2f%% meets the %.0f%% threshold", rate*100, o.evaluator.Threshold*100)
	case evaluate.DecisionAwaitFeedback:
		return decision, s.apply(EventExhausted,
			"reached %d of %d iterations at match rate %.2f%%, awaiting user feedback",
			iterations, maxIterations, rate*100)
	default:
		return decision, s.apply(EventRetry,
			"retrying: iteration %d of %d, match rate %.2f%%", iterations, maxIterations, rate*100)
	}
}

// failSession handles unrecoverable non-sandbox errors. Cancellation is not
// a session failure: the session is simply left as-is.
func (o *Orchestrator) failSession(s *Session, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logging.AgentWarn("[%s] session failed: %v", s.ID(), err)
	s.fail(err)
	return err
}

// promptContext snapshots the session into the collaborator's structured
// context with bounded previews.
func (o *Orchestrator) promptContext(s *Session) llm.PromptContext {
	a, b := s.Tables()
	hint, feedback, priorError, priorCode, analysis, strategy := s.promptInputs()
	return llm.PromptContext{
		PreviewA:   a.Preview(o.previewRows),
		PreviewB:   b.Preview(o.previewRows),
		SchemaA:    a.Schema(),
		SchemaB:    b.Schema(),
		TotalA:     a.Len(),
		TotalB:     b.Len(),
		Hint:       hint,
		Feedback:   feedback,
		PriorError: priorError,
		PriorCode:  priorCode,
		Analysis:   analysis,
		Strategy:   strategy,
	}
}
