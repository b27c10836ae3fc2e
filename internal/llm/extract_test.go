package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		strategy string
		key      string
	}{
		{"direct", `  {"plan":"a"}  `, "direct", "a"},
		{"json fence", "prose\n```json\n{\"plan\":\"b\"}\n```\nmore", "json_fence", "b"},
		{"first json fence wins", "```json\n{\"plan\":\"c\"}\n```\n```json\n{\"plan\":\"d\"}\n```", "json_fence", "c"},
		{"plain fence", "```\n{\"plan\":\"e\"}\n```", "any_fence", "e"},
		{"tagged fence", "```JSON\n{\"plan\":\"f\"}\n```", "any_fence", "f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, strategy, ok := Extract(tt.text)
			assert.True(t, ok)
			assert.Equal(t, tt.strategy, strategy)
			assert.Equal(t, tt.key, obj["plan"])
		})
	}
}

func TestExtract_Failures(t *testing.T) {
	for _, text := range []string{
		"no json here",
		"```json\n{broken\n```",
		"```json\n{\"unterminated\": 1}",
		`["an", "array"]`,
		"null",
	} {
		_, _, ok := Extract(text)
		assert.False(t, ok, text)
	}
}

func TestParsePlan_Placeholders(t *testing.T) {
	p := ParsePlan(`{"tools":["a","", 3, "b"]}`, nil)
	assert.Equal(t, "Generated plan", p.Plan)
	assert.Equal(t, "Generated reasoning", p.Reasoning)
	assert.Equal(t, []string{"a", "b"}, p.Tools)

	p = ParsePlan(`{"plan":["step 1","step 2"],"reasoning":"r"}`, nil)
	assert.Equal(t, `["step 1","step 2"]`, p.Plan)
	assert.Equal(t, []string{}, p.Tools)
}
