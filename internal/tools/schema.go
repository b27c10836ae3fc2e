package tools

import (
	"errors"
	"fmt"
	"math"
)

// ParamType is the declared type of a tool argument.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

// Param declares a single argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
	Enum        []string
}

// ParamOption customises a Param built by the typed constructors.
type ParamOption func(*Param)

// Required marks the parameter as mandatory.
func Required() ParamOption {
	return func(p *Param) { p.Required = true }
}

// Default sets the value used when the argument is absent.
func Default(v any) ParamOption {
	return func(p *Param) { p.Default = v }
}

// OneOf restricts a string parameter to the given values.
func OneOf(values ...string) ParamOption {
	return func(p *Param) { p.Enum = values }
}

func newParam(name string, typ ParamType, desc string, opts []ParamOption) Param {
	p := Param{Name: name, Type: typ, Description: desc}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func String(name, desc string, opts ...ParamOption) Param {
	return newParam(name, TypeString, desc, opts)
}

func Integer(name, desc string, opts ...ParamOption) Param {
	return newParam(name, TypeInteger, desc, opts)
}

func Number(name, desc string, opts ...ParamOption) Param {
	return newParam(name, TypeNumber, desc, opts)
}

func Boolean(name, desc string, opts ...ParamOption) Param {
	return newParam(name, TypeBoolean, desc, opts)
}

func Object(name, desc string, opts ...ParamOption) Param {
	return newParam(name, TypeObject, desc, opts)
}

func Array(name, desc string, opts ...ParamOption) Param {
	return newParam(name, TypeArray, desc, opts)
}

// Schema is an explicitly declared argument list. Tools never derive it by
// reflection; authors state each argument's type and whether it is required.
type Schema struct {
	Params []Param
}

// NewSchema builds a Schema from params in declaration order.
func NewSchema(params ...Param) Schema {
	return Schema{Params: params}
}

func (s Schema) check() error {
	seen := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("%w: parameter without a name", ErrInvalidTool)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: parameter %q declared twice", ErrInvalidTool, p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		default:
			return fmt.Errorf("%w: parameter %q has unknown type %q", ErrInvalidTool, p.Name, p.Type)
		}
	}
	return nil
}

// Validate checks args against the schema and returns a normalised copy with
// defaults applied and JSON numbers coerced for integer parameters.
// Unknown arguments are passed through.
func (s Schema) Validate(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args)+len(s.Params))
	for k, v := range args {
		out[k] = v
	}

	var errs []error
	for _, p := range s.Params {
		v, ok := out[p.Name]
		if !ok || v == nil {
			if p.Default != nil {
				out[p.Name] = p.Default
			} else if p.Required {
				errs = append(errs, fmt.Errorf("missing required argument %q", p.Name))
			}
			continue
		}
		coerced, err := coerce(p, v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[p.Name] = coerced
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, errors.Join(errs...))
	}
	return out, nil
}

func coerce(p Param, v any) (any, error) {
	mismatch := fmt.Errorf("argument %q must be %s, got %T", p.Name, p.Type, v)
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return nil, fmt.Errorf("argument %q must be one of %v, got %q", p.Name, p.Enum, s)
		}
		return s, nil
	case TypeInteger:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, mismatch
			}
			return int(n), nil
		}
		return nil, mismatch
	case TypeNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, mismatch
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return nil, mismatch
		}
	case TypeObject:
		if _, ok := v.(map[string]any); !ok {
			return nil, mismatch
		}
	case TypeArray:
		if _, ok := v.([]any); !ok {
			return nil, mismatch
		}
	}
	return v, nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// JSONSchema renders the schema as a JSON Schema object.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := make([]string, 0)
	for _, p := range s.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
