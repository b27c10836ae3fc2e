package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds tool definitions indexed by name and by category.
//
// It is read-mostly and safe for concurrent use: registration and permission
// changes take the write lock, every query takes the read lock.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]*Definition
	order      []string
	byCategory map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]*Definition),
		byCategory: make(map[string][]string),
	}
}

type registerOptions struct {
	replace bool
}

// RegisterOption customises Register.
type RegisterOption func(*registerOptions)

// WithReplace allows Register to overwrite an existing tool of the same
// name. The tool keeps its original position in List.
func WithReplace() RegisterOption {
	return func(o *registerOptions) { o.replace = true }
}

// Register adds def. It fails with ErrDuplicateTool if the name is taken
// and WithReplace was not given.
func (r *Registry) Register(def Definition, opts ...RegisterOption) error {
	if err := def.Validate(); err != nil {
		return err
	}
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tools[def.Name]; ok {
		if !o.replace {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
		}
		r.removeFromCategory(existing.Category, def.Name)
	} else {
		r.order = append(r.order, def.Name)
	}

	stored := def
	r.tools[def.Name] = &stored
	r.byCategory[def.Category] = append(r.byCategory[def.Category], def.Name)
	return nil
}

// Unregister removes a tool from both indices and reports whether it existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.tools[name]
	if !ok {
		return false
	}
	delete(r.tools, name)
	r.removeFromCategory(def.Category, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) removeFromCategory(category, name string) {
	names := r.byCategory[category]
	for i, n := range names {
		if n == name {
			names = append(names[:i], names[i+1:]...)
			break
		}
	}
	if len(names) == 0 {
		delete(r.byCategory, category)
		return
	}
	r.byCategory[category] = names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Get returns a copy of the named definition.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	if !ok {
		return Definition{}, false
	}
	return *def, true
}

// List returns tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ListByCategory returns the names in category, in registration order.
func (r *Registry) ListByCategory(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.byCategory[category]...)
}

// Categories returns all non-empty categories, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cats := make([]string, 0, len(r.byCategory))
	for c := range r.byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// SetPermission updates a tool's permission in place. It returns false for
// an unknown tool.
func (r *Registry) SetPermission(name string, perm Permission) bool {
	if _, ok := permissionNames[perm]; !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.tools[name]
	if !ok {
		return false
	}
	def.Permission = perm
	return true
}

// Permission returns the current permission of name.
func (r *Registry) Permission(name string) (Permission, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	if !ok {
		return 0, false
	}
	return def.Permission, true
}

func (r *Registry) withPermission(perm Permission) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, n := range r.order {
		if r.tools[n].Permission == perm {
			names = append(names, n)
		}
	}
	return names
}

// SafeTools returns the tools that run without confirmation.
func (r *Registry) SafeTools() []string {
	return r.withPermission(AutoApprove)
}

// RequiringApproval returns the tools gated behind a human decision.
func (r *Registry) RequiringApproval() []string {
	return r.withPermission(RequireConfirmation)
}

// Info returns the serialisable view of one tool.
func (r *Registry) Info(name string) (Info, bool) {
	def, ok := r.Get(name)
	if !ok {
		return Info{}, false
	}
	return def.Info(), true
}

// Export returns every tool's Info in registration order.
func (r *Registry) Export() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n].Info())
	}
	return out
}

// Invoke validates args against the tool's schema and runs its capability.
// The registry lock is not held while the capability runs.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if def.Permission == Blocked {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, name)
	}
	validated, err := def.Schema.Validate(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return def.Capability.Invoke(ctx, validated)
}
