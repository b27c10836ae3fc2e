package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/memory"
)

const (
	planningSystemPrompt = `You are an intelligent planning agent. Your job is to analyze user requests and create detailed execution plans.

When given a request:
1. Break it down into clear, actionable steps
2. Identify what tools would be needed for each step
3. Consider dependencies between steps
4. Provide reasoning for your approach

Always respond with valid JSON in this format:
{
    "plan": "Detailed step-by-step plan as a string",
    "tools": ["tool1", "tool2"],
    "arguments": {"tool1": {"param": "value"}},
    "reasoning": "Why this approach and these tools",
    "estimated_complexity": "low|medium|high",
    "dependencies": ["any prerequisites or considerations"]
}`

	reflectionSystemPrompt = `You are a reflective agent that analyzes task execution results and determines next steps.

When given execution results:
1. Analyze what was accomplished
2. Identify any issues or failures
3. Determine if the original goal was met
4. Suggest improvements or next steps
5. Extract key learnings

Always respond with valid JSON in this format:
{
    "reflection": "Analysis of what happened and results",
    "completed": true,
    "success_rate": 0.0,
    "next_steps": "What should happen next (if not completed)",
    "learnings": "Key insights or lessons learned",
    "issues_found": ["any problems encountered"],
    "recommendations": ["suggestions for improvement"]
}`

	responseSystemPrompt = `You are an intelligent assistant that helps users accomplish tasks through planning and tool execution.
You are helpful, accurate, and transparent about your capabilities and limitations.`

	planFallbackReasoning = "Fallback parsing - could not extract JSON"

	maxResponseContextItems = 3
	maxResponseContextChars = 200
)

// Plan is the structured output of GeneratePlan.
type Plan struct {
	Plan                string                    `json:"plan"`
	Tools               []string                  `json:"tools"`
	Reasoning           string                    `json:"reasoning"`
	Arguments           map[string]map[string]any `json:"arguments,omitempty"`
	EstimatedComplexity string                    `json:"estimated_complexity,omitempty"`
	Dependencies        []string                  `json:"dependencies,omitempty"`

	// Fallback is set when no strategy could extract an object.
	Fallback bool           `json:"fallback,omitempty"`
	Raw      map[string]any `json:"-"`
}

// Reflection is the structured output of Reflect.
type Reflection struct {
	Reflection      string   `json:"reflection"`
	Completed       bool     `json:"completed"`
	SuccessRate     float64  `json:"success_rate"`
	NextSteps       string   `json:"next_steps,omitempty"`
	Learnings       string   `json:"learnings,omitempty"`
	IssuesFound     []string `json:"issues_found,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`

	Fallback bool `json:"fallback,omitempty"`
}

// GeneratePlan asks the model for a plan. Only ErrLLMUnavailable is
// returned as an error; malformed output becomes a fallback Plan.
func (a *Adapter) GeneratePlan(ctx context.Context, prompt string) (*Plan, error) {
	text, err := a.Complete(ctx, planningSystemPrompt+"\n\nUser Request: "+prompt, StructuredJSON)
	if err != nil {
		return nil, err
	}
	return ParsePlan(text, a.logger), nil
}

// ParsePlan converts model text into a Plan. It never fails.
func ParsePlan(text string, logger *zap.Logger) *Plan {
	obj, strategy, ok := Extract(text)
	if !ok {
		if logger != nil {
			logger.Debug("plan extraction fell back", zap.Int("length", len(text)))
		}
		return &Plan{
			Plan:                text,
			Tools:               []string{},
			Reasoning:           planFallbackReasoning,
			EstimatedComplexity: "unknown",
			Fallback:            true,
		}
	}
	if logger != nil {
		logger.Debug("plan extracted", zap.String("strategy", strategy))
	}

	p := &Plan{
		Plan:                stringField(obj, "plan"),
		Tools:               stringSlice(obj["tools"]),
		Reasoning:           stringField(obj, "reasoning"),
		EstimatedComplexity: stringField(obj, "estimated_complexity"),
		Dependencies:        stringSlice(obj["dependencies"]),
		Arguments:           argumentsField(obj["arguments"]),
		Raw:                 obj,
	}
	if _, ok := obj["plan"]; !ok {
		p.Plan = "Generated plan"
	}
	if _, ok := obj["reasoning"]; !ok {
		p.Reasoning = "Generated reasoning"
	}
	return p
}

// Reflect asks the model to assess execution results.
func (a *Adapter) Reflect(ctx context.Context, prompt string) (*Reflection, error) {
	text, err := a.Complete(ctx, reflectionSystemPrompt+"\n\nExecution Results: "+prompt, StructuredJSON)
	if err != nil {
		return nil, err
	}
	return ParseReflection(text), nil
}

// ParseReflection converts model text into a Reflection. It never fails.
func ParseReflection(text string) *Reflection {
	obj, _, ok := Extract(text)
	if !ok {
		return &Reflection{
			Reflection:  text,
			SuccessRate: 0.5,
			NextSteps:   "Review and retry",
			Learnings:   "Could not parse structured reflection",
			Fallback:    true,
		}
	}

	r := &Reflection{
		Reflection:      stringField(obj, "reflection"),
		NextSteps:       stringField(obj, "next_steps"),
		Learnings:       stringField(obj, "learnings"),
		IssuesFound:     stringSlice(obj["issues_found"]),
		Recommendations: stringSlice(obj["recommendations"]),
	}
	if _, ok := obj["reflection"]; !ok {
		r.Reflection = text
	}
	switch v := obj["completed"].(type) {
	case bool:
		r.Completed = v
	case string:
		r.Completed = strings.EqualFold(v, "true")
	}
	if v, ok := obj["success_rate"].(float64); ok {
		r.SuccessRate = v
	}
	return r
}

// GenerateResponse produces a conversational reply using at most three
// context snippets.
func (a *Adapter) GenerateResponse(ctx context.Context, message string, items []memory.ContextItem) (string, error) {
	var b strings.Builder
	b.WriteString(responseSystemPrompt)
	if len(items) > 0 {
		b.WriteString("\n\nRelevant context from previous interactions:\n")
		for i, item := range items {
			if i == maxResponseContextItems {
				break
			}
			fmt.Fprintf(&b, "- %s...\n", truncate(item.Content, maxResponseContextChars))
		}
	}
	fmt.Fprintf(&b, "\n\nUser: %s\n\nAssistant:", message)

	text, err := a.Complete(ctx, b.String(), FreeText)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Health is the result of HealthCheck.
type Health struct {
	Healthy   bool      `json:"healthy"`
	Model     string    `json:"model"`
	Response  string    `json:"response,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthCheck sends a trivial prompt with a single attempt.
func (a *Adapter) HealthCheck(ctx context.Context) Health {
	h := Health{Model: a.cfg.Model, CheckedAt: time.Now()}
	text, err := a.complete(ctx, "Hello! This is a test message. Please respond with 'OK'.", FreeText, 1)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Healthy = true
	h.Response = truncate(text, 100)
	return h
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// stringField reads key as a string, rendering other JSON values compactly.
func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func stringSlice(v any) []string {
	out := []string{}
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if strings.TrimSpace(list) != "" {
			out = append(out, strings.TrimSpace(list))
		}
	}
	return out
}

func argumentsField(v any) map[string]map[string]any {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]map[string]any, len(raw))
	for name, args := range raw {
		if m, ok := args.(map[string]any); ok {
			out[name] = m
		}
	}
	return out
}
