package llm

import (
	"fmt"
	"sort"
	"strings"
)

// PromptContext is the structured context handed to the collaborator for
// each step: bounded table previews, inferred schemas, counters, and the
// optional hint / feedback / prior-error texts.
type PromptContext struct {
	PreviewA string
	PreviewB string
	SchemaA  map[string]string
	SchemaB  map[string]string
	TotalA   int
	TotalB   int

	Hint       string
	Feedback   string
	PriorError string
	PriorCode  string

	Analysis string
	Strategy string
}

// AnalystSystemPrompt frames the schema comparison step.
const AnalystSystemPrompt = `You are an expert data reconciliation analyst.

Your task is to analyze two datasets and identify the best strategy for reconciling them.

When analyzing datasets, consider:
1. Column names and their likely meanings
2. Data types (dates, amounts, IDs, descriptions)
3. Potential matching keys (transaction IDs, reference numbers, amounts, dates)
4. Data format differences (date formats, number formats, string variations)
5. Possible matching patterns: direct key matching, reference extraction from
   free text, fuzzy name matching, amount matching with tolerance, date
   matching with tolerance

Be specific about which columns to use, what transformations are needed, the
expected match rate, and potential challenges.`

// StrategistSystemPrompt frames the strategy formulation step.
const StrategistSystemPrompt = `You are a data reconciliation strategist. Turn an analysis into a clear, actionable, step-by-step matching strategy. Be specific about column names and transformations.`

// CoderSystemPrompt frames the code generation step. It pins the sandbox
// contract: statement-form Go, fixed bound names, no imports.
const CoderSystemPrompt = `You are an expert Go developer writing data matching programs.

You write a sequence of Go STATEMENTS (no package clause, no imports, no
top-level func declarations) that reconciles two tables.

ENVIRONMENT:
- tableA and tableB are bound as []map[string]interface{} (one map per row)
- These packages are pre-imported and usable directly: strings, strconv,
  sort, math, regexp, time, unicode, fmt (Sprintf only)
- The frame package provides helpers:
    frame.Text(v interface{}) string                 render any cell as a trimmed string
    frame.Number(v interface{}) (float64, bool)      coerce a cell to a number
    frame.Normalize(s string) string                 lowercase, trim, collapse spaces
    frame.Extract(pattern, s string) string          first regexp match or ""
    frame.Merge(a, b map[string]interface{}) map[string]interface{}
    frame.JoinOn(a, b []map[string]interface{}, keyA, keyB string) (matched, restA, restB []map[string]interface{})

CRITICAL REQUIREMENTS:
1. Bind the matched rows to a variable named result ([]map[string]interface{})
2. Optionally bind unmatchedA and unmatchedB for each side's remainder
3. Do NOT use import statements, goroutines, channels, or any I/O
4. Define helper logic as function literals assigned to variables, not func declarations
5. Handle missing values and type mismatches gracefully

OUTPUT FORMAT:
Return only the Go statements, wrapped in a ` + "```go" + ` code block.`

// BuildAnalysisPrompt renders the analyst's user prompt.
func BuildAnalysisPrompt(pc PromptContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these two datasets for reconciliation:\n\n")
	fmt.Fprintf(&b, "## Dataset A (source): %d rows\nTypes: %s\n\nPreview:\n%s\n\n",
		pc.TotalA, formatSchema(pc.SchemaA), pc.PreviewA)
	fmt.Fprintf(&b, "## Dataset B (target): %d rows\nTypes: %s\n\nPreview:\n%s\n",
		pc.TotalB, formatSchema(pc.SchemaB), pc.PreviewB)

	if pc.Hint != "" {
		fmt.Fprintf(&b, "\n## User hint\n%s\n", pc.Hint)
	}

	b.WriteString(`
Provide:
1. Key observations about each dataset
2. Identified matching columns/keys
3. Required transformations
4. Recommended matching strategy
5. Expected challenges and how to handle them`)
	return b.String()
}

// BuildStrategyPrompt renders the strategist's user prompt.
func BuildStrategyPrompt(pc PromptContext) string {
	return fmt.Sprintf(`Based on this analysis of the two datasets:

%s

Provide a specific, step-by-step matching strategy that includes:
1. Primary matching key(s) and how to extract/transform them
2. Secondary matching criteria if primary fails
3. How to handle unmatched records
4. Any data cleaning steps needed

Be specific about column names and transformations.`, pc.Analysis)
}

// BuildCodePrompt renders the coder's user prompt, folding in prior error
// text when retrying after a failure and feedback text when refining.
func BuildCodePrompt(pc PromptContext) string {
	var b strings.Builder
	b.WriteString("Generate Go matching statements based on this analysis:\n\n")
	fmt.Fprintf(&b, "## Analysis\n%s\n\n", orUnavailable(pc.Analysis))
	fmt.Fprintf(&b, "## Matching strategy\n%s\n\n", orUnavailable(pc.Strategy))
	fmt.Fprintf(&b, "## Table A: %d rows\nTypes: %s\nSample:\n%s\n\n",
		pc.TotalA, formatSchema(pc.SchemaA), pc.PreviewA)
	fmt.Fprintf(&b, "## Table B: %d rows\nTypes: %s\nSample:\n%s\n",
		pc.TotalB, formatSchema(pc.SchemaB), pc.PreviewB)

	if pc.PriorError != "" {
		fmt.Fprintf(&b, "\n## Previous attempt failed\nError: %s\n", pc.PriorError)
		if pc.PriorCode != "" {
			fmt.Fprintf(&b, "\nPrevious code:\n```go\n%s\n```\nFix the problem and improve the match rate.\n", pc.PriorCode)
		}
	}
	if pc.Feedback != "" {
		fmt.Fprintf(&b, "\n## User feedback\n%s\n\nIncorporate this feedback into the matching logic.\n", pc.Feedback)
	}

	b.WriteString(`
Write the matching statements. Remember:
- Bind matched rows to result
- Bind unmatched rows from tableA to unmatchedA
- Bind unmatched rows from tableB to unmatchedB`)
	return b.String()
}

func formatSchema(schema map[string]string) string {
	if len(schema) == 0 {
		return "(none)"
	}
	cols := make([]string, 0, len(schema))
	for col := range schema {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, fmt.Sprintf("%s=%s", col, schema[col]))
	}
	return strings.Join(parts, ", ")
}

func orUnavailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(not available)"
	}
	return s
}
