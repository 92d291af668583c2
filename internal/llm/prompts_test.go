package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func samplePromptContext() PromptContext {
	return PromptContext{
		PreviewA: "| id |\n| A1 |",
		PreviewB: "| ref |\n| R1 |",
		SchemaA:  map[string]string{"id": "string", "amount": "float"},
		SchemaB:  map[string]string{"ref": "string"},
		TotalA:   120,
		TotalB:   118,
	}
}

func TestBuildAnalysisPrompt(t *testing.T) {
	pc := samplePromptContext()
	got := BuildAnalysisPrompt(pc)

	assert.Contains(t, got, "120 rows")
	assert.Contains(t, got, "118 rows")
	assert.Contains(t, got, pc.PreviewA)
	assert.Contains(t, got, pc.PreviewB)
	assert.Contains(t, got, "amount=float, id=string", "schema renders sorted")
	assert.NotContains(t, got, "User hint")

	pc.Hint = "match invoices by reference number"
	assert.Contains(t, BuildAnalysisPrompt(pc), "match invoices by reference number")
}

func TestBuildStrategyPrompt(t *testing.T) {
	pc := samplePromptContext()
	pc.Analysis = "both sides carry an invoice number"
	got := BuildStrategyPrompt(pc)
	assert.Contains(t, got, pc.Analysis)
	assert.Contains(t, got, "step-by-step")
}

func TestBuildCodePrompt(t *testing.T) {
	pc := samplePromptContext()
	pc.Analysis = "analysis text"
	pc.Strategy = "strategy text"

	got := BuildCodePrompt(pc)
	assert.Contains(t, got, "analysis text")
	assert.Contains(t, got, "strategy text")
	assert.Contains(t, got, "result")
	assert.NotContains(t, got, "Previous attempt failed")
	assert.NotContains(t, got, "User feedback")
}

func TestBuildCodePrompt_RetrySections(t *testing.T) {
	pc := samplePromptContext()
	pc.PriorError = "runtime error: index out of range"
	pc.PriorCode = "result := tableA[99]"

	got := BuildCodePrompt(pc)
	assert.Contains(t, got, "Previous attempt failed")
	assert.Contains(t, got, pc.PriorError)
	assert.Contains(t, got, pc.PriorCode)
}

func TestBuildCodePrompt_FeedbackSection(t *testing.T) {
	pc := samplePromptContext()
	pc.Feedback = "amounts are in cents on side B"

	got := BuildCodePrompt(pc)
	assert.Contains(t, got, "User feedback")
	assert.Contains(t, got, pc.Feedback)
}

func TestBuildCodePrompt_MissingNarratives(t *testing.T) {
	got := BuildCodePrompt(samplePromptContext())
	assert.Contains(t, got, "(not available)")
}

func TestFormatSchema(t *testing.T) {
	assert.Equal(t, "(none)", formatSchema(nil))
	assert.Equal(t, "a=integer, b=string", formatSchema(map[string]string{"b": "string", "a": "integer"}))
}
