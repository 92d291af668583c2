package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	e := New(0.95)

	tests := []struct {
		name    string
		failed  bool
		rate    float64
		iter    int
		maxIter int
		want    Decision
	}{
		{"at threshold completes", false, 0.95, 1, 5, DecisionComplete},
		{"above threshold completes", false, 1.0, 3, 5, DecisionComplete},
		{"below threshold retries", false, 0.5, 2, 5, DecisionRetry},
		{"failed run retries", true, 0.0, 1, 5, DecisionRetry},
		{"failed run on last iteration pauses", true, 0.0, 5, 5, DecisionAwaitFeedback},
		{"low rate on last iteration pauses", false, 0.9, 5, 5, DecisionAwaitFeedback},
		{"threshold beats exhaustion", false, 0.96, 5, 5, DecisionComplete},
		{"failed run never completes even at full rate", true, 1.0, 1, 5, DecisionRetry},
		{"past budget pauses", false, 0.1, 7, 5, DecisionAwaitFeedback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Decide(tt.failed, tt.rate, tt.iter, tt.maxIter))
		})
	}
}

func TestNew_DefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, New(0).Threshold)
	assert.Equal(t, DefaultThreshold, New(-1).Threshold)
	assert.Equal(t, 0.8, New(0.8).Threshold)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "retry", DecisionRetry.String())
	assert.Equal(t, "complete", DecisionComplete.String())
	assert.Equal(t, "awaiting_feedback", DecisionAwaitFeedback.String())
}
