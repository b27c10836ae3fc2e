// Package tools holds tool definitions and the process-wide registry that
// answers existence, lookup and permission queries for the orchestrator.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Errors for registry and invocation.
var (
	ErrDuplicateTool    = errors.New("tool already registered")
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrBlocked          = errors.New("tool is blocked")
	ErrInvalidTool      = errors.New("invalid tool definition")
)

// Permission governs whether a selected tool may run without a human decision.
type Permission int

const (
	AutoApprove Permission = iota
	RequireConfirmation
	Blocked
)

var permissionNames = map[Permission]string{
	AutoApprove:         "auto_approve",
	RequireConfirmation: "require_confirmation",
	Blocked:             "blocked",
}

func (p Permission) String() string {
	if s, ok := permissionNames[p]; ok {
		return s
	}
	return fmt.Sprintf("permission(%d)", int(p))
}

// ParsePermission accepts the canonical names plus a few short aliases.
func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto_approve", "auto", "allow":
		return AutoApprove, nil
	case "require_confirmation", "confirm", "ask":
		return RequireConfirmation, nil
	case "blocked", "block", "deny":
		return Blocked, nil
	}
	return 0, fmt.Errorf("unknown permission %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Capability is an invocable unit of work. Risk and permission metadata
// travel with the Definition, not the capability.
type Capability interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, args map[string]any) (any, error)

// Invoke calls f.
func (f CapabilityFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Definition describes a registered tool. Only Permission may change after
// registration, and only through Registry.SetPermission.
type Definition struct {
	Name        string
	Description string
	Capability  Capability
	Schema      Schema
	Permission  Permission
	Category    string
	RiskLevel   int // 1 (harmless) to 5 (destructive)
}

// Validate checks the fields required for registration.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTool)
	}
	if d.Capability == nil {
		return fmt.Errorf("%w: %s has no capability", ErrInvalidTool, d.Name)
	}
	if d.RiskLevel < 1 || d.RiskLevel > 5 {
		return fmt.Errorf("%w: %s risk level %d outside 1-5", ErrInvalidTool, d.Name, d.RiskLevel)
	}
	if _, ok := permissionNames[d.Permission]; !ok {
		return fmt.Errorf("%w: %s has unknown permission %d", ErrInvalidTool, d.Name, d.Permission)
	}
	return d.Schema.check()
}

// Info is the serialisable view of a Definition.
type Info struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Permission  Permission     `json:"permission"`
	Category    string         `json:"category"`
	RiskLevel   int            `json:"risk_level"`
	Parameters  map[string]any `json:"parameters"`
}

// Info returns the serialisable view of d.
func (d Definition) Info() Info {
	return Info{
		Name:        d.Name,
		Description: d.Description,
		Permission:  d.Permission,
		Category:    d.Category,
		RiskLevel:   d.RiskLevel,
		Parameters:  d.Schema.JSONSchema(),
	}
}
