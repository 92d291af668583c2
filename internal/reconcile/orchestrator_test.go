package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WeiKhjan/reconciliation-agent/internal/evaluate"
)

const (
	joinProgram = "```go\n" +
		`m, ra, rb := frame.JoinOn(tableA, tableB, "id", "id")
result := m
unmatchedA := ra
unmatchedB := rb` + "\n```"

	brokenProgram = "result := ("

	emptyProgram = `result := []map[string]interface{}{}
unmatchedA := tableA
unmatchedB := tableB`
)

func testConfig(maxIter int) Config {
	return Config{
		MaxIterations:  maxIter,
		MatchThreshold: evaluate.DefaultThreshold,
		PreviewRows:    5,
		SandboxTimeout: 5 * time.Second,
	}
}

func uploadedSession(t *testing.T, maxIter int) *Session {
	t.Helper()
	s := NewSession("test-session", maxIter)
	a, b := twoTables()
	require.NoError(t, s.AttachTables(a, b))
	return s
}

func TestRun_CompletesOnFirstIteration(t *testing.T) {
	mock := scriptedLLM(joinProgram)
	o := New(mock, testConfig(5))
	s := uploadedSession(t, 5)

	require.NoError(t, o.Run(context.Background(), s))

	assert.Equal(t, StatusComplete, s.Status())
	assert.Equal(t, 1, mock.CoderCalls())

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Iterations)
	assert.Equal(t, 1.0, snap.MatchRate)

	res, ok := s.Results()
	require.True(t, ok)
	assert.Len(t, res.Matched, 10)
	assert.Empty(t, res.UnmatchedA)
	assert.Empty(t, res.UnmatchedB)

	joined := strings.Join(s.Trace(), "\n")
	assert.Contains(t, joined, "frame.JoinOn", "trace records generated code")
	assert.Contains(t, joined, "analysis")
}

func TestRun_RetriesAfterSandboxFailure(t *testing.T) {
	mock := scriptedLLM(brokenProgram, joinProgram)
	o := New(mock, testConfig(5))
	s := uploadedSession(t, 5)

	require.NoError(t, o.Run(context.Background(), s))

	assert.Equal(t, StatusComplete, s.Status())
	assert.Equal(t, 2, mock.CoderCalls())
	assert.Equal(t, 2, s.Snapshot().Iterations)
	assert.Contains(t, strings.Join(s.Trace(), "\n"), "execution failed")
}

func TestRun_RetryPromptCarriesPriorError(t *testing.T) {
	var secondPrompt string
	mock := &mockLLM{
		CoderFunc: func(call int, user string) (string, error) {
			if call == 1 {
				return brokenProgram, nil
			}
			secondPrompt = user
			return joinProgram, nil
		},
	}
	o := New(mock, testConfig(5))
	s := uploadedSession(t, 5)

	require.NoError(t, o.Run(context.Background(), s))
	assert.Contains(t, secondPrompt, "parse", "retry prompt includes the previous failure")
}

func TestRun_ExhaustsIterationBudget(t *testing.T) {
	mock := scriptedLLM(emptyProgram)
	o := New(mock, testConfig(2))
	s := uploadedSession(t, 2)

	require.NoError(t, o.Run(context.Background(), s))

	assert.Equal(t, StatusAwaitingFeedback, s.Status())
	assert.Equal(t, 2, mock.CoderCalls())

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Iterations)
	assert.Equal(t, 0.0, snap.MatchRate)

	// Partial results stay available while paused.
	res, ok := s.Results()
	require.True(t, ok)
	assert.Empty(t, res.Matched)
	assert.Len(t, res.UnmatchedA, 10)
}

func TestResume_FeedbackRefinement(t *testing.T) {
	const feedback = "the id columns correspond directly, join on them"

	var refinePrompt string
	mock := &mockLLM{
		CoderFunc: func(call int, user string) (string, error) {
			if call <= 2 {
				return emptyProgram, nil
			}
			refinePrompt = user
			return joinProgram, nil
		},
	}
	o := New(mock, testConfig(2))
	s := uploadedSession(t, 2)

	require.NoError(t, o.Run(context.Background(), s))
	require.Equal(t, StatusAwaitingFeedback, s.Status())

	require.NoError(t, o.Resume(context.Background(), s, feedback))

	assert.Equal(t, StatusComplete, s.Status())
	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Iterations, "iteration counter keeps accumulating across cycles")
	assert.Equal(t, 4, snap.MaxIterations, "feedback raises the bound by one full budget")
	assert.Equal(t, 1.0, snap.MatchRate)

	assert.Contains(t, refinePrompt, feedback, "refinement prompt carries the feedback")
	assert.Contains(t, strings.Join(s.Trace(), "\n"), feedback, "feedback lands in the trace verbatim")
}

func TestResume_RequiresHaltedSession(t *testing.T) {
	mock := scriptedLLM(joinProgram)
	o := New(mock, testConfig(5))
	s := uploadedSession(t, 5)

	err := o.Resume(context.Background(), s, "some feedback")
	require.Error(t, err, "feedback on a session that never ran")
	assert.Equal(t, StatusUploaded, s.Status())
}

func TestRun_RequiresTables(t *testing.T) {
	o := New(scriptedLLM(joinProgram), testConfig(5))
	s := NewSession("no-tables", 5)

	err := o.Run(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, StatusCreated, s.Status())
}

func TestRun_CollaboratorFailureMarksSessionErrored(t *testing.T) {
	mock := &mockLLM{
		AnalysisFunc: func(string) (string, error) {
			return "", assert.AnError
		},
	}
	o := New(mock, testConfig(5))
	s := uploadedSession(t, 5)

	err := o.Run(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, StatusError, s.Status())
	assert.Contains(t, s.Snapshot().LastError, "schema analysis failed")
}

func TestRun_CancellationLeavesSessionUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(scriptedLLM(joinProgram), testConfig(5))
	s := uploadedSession(t, 5)

	err := o.Run(ctx, s)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, StatusError, s.Status(), "cancellation is not a session failure")
}
