package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

const maxPromptResultChars = 2000

// completionPattern matches "complete", "completed" and "completely" as a
// word, so "incomplete" does not end the run.
var completionPattern = regexp.MustCompile(`(?i)\bcomplete`)

// negatedCompletion covers phrases such as "not complete", "not yet
// completed", "can't be completed" and "never completed".
var negatedCompletion = regexp.MustCompile(`(?i)(\bnot|n't|\bnever)\s+((yet|fully|be|been|quite)\s+)*complete\w*`)

func indicatesCompletion(reflection string) bool {
	return completionPattern.MatchString(negatedCompletion.ReplaceAllString(reflection, ""))
}

func planningPrompt(state *RunState, registry ToolRegistry) string {
	var b strings.Builder

	if len(state.MemoryContext) > 0 {
		b.WriteString("Previous relevant interactions:\n")
		for _, item := range state.MemoryContext {
			fmt.Fprintf(&b, "- [%s] %s\n", item.Type, oneLine(item.Content))
		}
		b.WriteString("\n")
	}

	// Rejections and other notes added since the last user turn.
	var notes []string
	for i := len(state.Messages) - 1; i >= 0 && state.Messages[i].Role != RoleUser; i-- {
		if state.Messages[i].Role == RoleSystem {
			notes = append([]string{state.Messages[i].Content}, notes...)
		}
	}
	for _, n := range notes {
		fmt.Fprintf(&b, "Note: %s\n", n)
	}
	if state.IterationCount > 0 && state.Reflection != "" {
		fmt.Fprintf(&b, "Iteration %d reflection: %s\n", state.IterationCount, oneLine(state.Reflection))
	}

	fmt.Fprintf(&b, "Current request: %s\n\n", state.LastUserMessage())

	b.WriteString("Available tools:\n")
	for _, name := range registry.List() {
		def, ok := registry.Get(name)
		if !ok || def.Permission == tools.Blocked {
			continue
		}
		params, _ := json.Marshal(def.Schema.JSONSchema())
		fmt.Fprintf(&b, "- %s: %s (parameters: %s)\n", def.Name, def.Description, params)
	}

	b.WriteString(`
Create a step-by-step plan to fulfill this request.
Select appropriate tools and provide reasoning.

Respond with JSON:
{
    "plan": "detailed step-by-step plan",
    "tools": ["tool1", "tool2"],
    "arguments": {"tool1": {"param": "value"}},
    "reasoning": "why these tools were selected"
}`)
	return b.String()
}

func reflectionPrompt(state *RunState) string {
	used := make([]string, 0, len(state.ToolResults))
	for _, name := range state.SelectedTools {
		if _, ok := state.ToolResults[name]; ok {
			used = append(used, name)
		}
	}
	results, err := json.Marshal(state.ToolResults)
	if err != nil {
		results = []byte(fmt.Sprintf("%v", state.ToolResults))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original request: %s\n", state.LastUserMessage())
	fmt.Fprintf(&b, "Plan executed: %s\n", state.Plan)
	fmt.Fprintf(&b, "Tools used: %s\n", strings.Join(used, ", "))
	fmt.Fprintf(&b, "Results: %s\n", truncate(string(results), maxPromptResultChars))
	b.WriteString(`
Analyze the results and determine:
1. Was the task completed successfully?
2. What was learned?
3. Are additional steps needed?

Respond with JSON:
{
    "reflection": "analysis of results",
    "completed": true,
    "next_steps": "what to do next if not completed"
}`)
	return b.String()
}

// taskTitle is the first line of a request, shortened for the task record.
func taskTitle(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return truncate(strings.TrimSpace(line), 80)
}

func oneLine(s string) string {
	return truncate(strings.Join(strings.Fields(s), " "), 300)
}

// truncate keeps at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
