package llm

import (
	"encoding/json"
	"strings"
)

// Strategy tries to pull a JSON object out of model text.
type Strategy struct {
	Name    string
	Extract func(text string) (map[string]any, bool)
}

// Strategies are tried in order; the first that yields an object wins.
var Strategies = []Strategy{
	{Name: "direct", Extract: parseDirect},
	{Name: "json_fence", Extract: parseJSONFence},
	{Name: "any_fence", Extract: parseAnyFence},
}

// Extract runs Strategies over text. It reports the winning strategy name,
// or false when every strategy failed.
func Extract(text string) (map[string]any, string, bool) {
	for _, s := range Strategies {
		if obj, ok := s.Extract(text); ok {
			return obj, s.Name, true
		}
	}
	return nil, "", false
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func parseDirect(text string) (map[string]any, bool) {
	return decodeObject(text)
}

func parseJSONFence(text string) (map[string]any, bool) {
	body, ok := fenced(text, "```json")
	if !ok {
		return nil, false
	}
	return decodeObject(body)
}

func parseAnyFence(text string) (map[string]any, bool) {
	body, ok := fenced(text, "```")
	if !ok {
		return nil, false
	}
	// Drop a language tag on the opening line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(body[:nl]); tag != "" && !strings.ContainsAny(tag, "{[") {
			body = body[nl+1:]
		}
	}
	return decodeObject(body)
}

// fenced returns the text between the first opener and the next ``` fence.
func fenced(text, opener string) (string, bool) {
	start := strings.Index(text, opener)
	if start < 0 {
		return "", false
	}
	start += len(opener)
	end := strings.Index(text[start:], "```")
	if end < 0 {
		return "", false
	}
	return text[start : start+end], true
}
