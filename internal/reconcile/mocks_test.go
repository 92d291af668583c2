package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/WeiKhjan/reconciliation-agent/internal/llm"
)

// mockLLM satisfies llm.Client with scriptable per-role behavior, keyed off
// the system prompt the orchestrator sends. Coder calls are counted so tests
// can script a different program per iteration.
type mockLLM struct {
	mu         sync.Mutex
	coderCalls int

	AnalysisFunc func(user string) (string, error)
	StrategyFunc func(user string) (string, error)
	CoderFunc    func(call int, user string) (string, error)
}

func (m *mockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch system {
	case llm.AnalystSystemPrompt:
		if m.AnalysisFunc != nil {
			return m.AnalysisFunc(user)
		}
		return "both tables share an id column", nil
	case llm.StrategistSystemPrompt:
		if m.StrategyFunc != nil {
			return m.StrategyFunc(user)
		}
		return "exact join on id", nil
	case llm.CoderSystemPrompt:
		m.mu.Lock()
		m.coderCalls++
		call := m.coderCalls
		m.mu.Unlock()
		if m.CoderFunc != nil {
			return m.CoderFunc(call, user)
		}
		return "", fmt.Errorf("no coder script installed")
	default:
		return "", fmt.Errorf("unexpected system prompt: %.40q", system)
	}
}

// CoderCalls returns how many code generations the mock served.
func (m *mockLLM) CoderCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coderCalls
}

// scriptedLLM returns a mock whose coder yields the given programs in order,
// repeating the last one once the script runs out.
func scriptedLLM(programs ...string) *mockLLM {
	return &mockLLM{
		CoderFunc: func(call int, user string) (string, error) {
			if call > len(programs) {
				call = len(programs)
			}
			return programs[call-1], nil
		},
	}
}
