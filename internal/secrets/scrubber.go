// Package secrets redacts credentials from text before it is persisted.
package secrets

import (
	"fmt"
	"regexp"
	"sort"
)

// DefaultRedaction replaces every detected secret.
const DefaultRedaction = "[REDACTED]"

// Result describes one Scrub call.
type Result struct {
	Scrubbed string
	ByRule   map[string]int
	Total    int
}

// HasFindings reports whether anything was redacted.
func (r Result) HasFindings() bool {
	return r.Total > 0
}

type compiledRule struct {
	id      string
	pattern *regexp.Regexp
}

// Scrubber applies a fixed rule set. It is safe for concurrent use.
type Scrubber struct {
	rules     []compiledRule
	redaction string
}

// New compiles rules. With no rules, DefaultRules is used.
func New(rules ...Rule) (*Scrubber, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	s := &Scrubber{redaction: DefaultRedaction}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("secrets: rule %s: %w", r.ID, err)
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, pattern: re})
	}
	return s, nil
}

// MustNew is New for rule sets known to compile.
func MustNew(rules ...Rule) *Scrubber {
	s, err := New(rules...)
	if err != nil {
		panic(err)
	}
	return s
}

type span struct{ start, end int }

// Scrub replaces every match with the redaction marker. Overlapping matches
// from different rules collapse into one marker.
func (s *Scrubber) Scrub(content string) Result {
	res := Result{Scrubbed: content, ByRule: map[string]int{}}
	if s == nil || content == "" {
		return res
	}

	var spans []span
	for _, r := range s.rules {
		for _, m := range r.pattern.FindAllStringIndex(content, -1) {
			spans = append(spans, span{m[0], m[1]})
			res.ByRule[r.id]++
			res.Total++
		}
	}
	if len(spans) == 0 {
		return res
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	out := make([]byte, 0, len(content))
	prev := 0
	for _, sp := range merged {
		out = append(out, content[prev:sp.start]...)
		out = append(out, s.redaction...)
		prev = sp.end
	}
	out = append(out, content[prev:]...)
	res.Scrubbed = string(out)
	return res
}

// String is Scrub returning only the scrubbed text.
func (s *Scrubber) String(content string) string {
	return s.Scrub(content).Scrubbed
}
