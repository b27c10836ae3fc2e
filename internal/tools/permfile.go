package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrInvalidPermissionFile indicates a permission override file that cannot
// be parsed.
var ErrInvalidPermissionFile = errors.New("invalid permission file")

// PermissionFile applies per-tool permission overrides from a TOML file:
//
//	[permissions]
//	write_file  = "auto_approve"
//	run_command = "blocked"
//
// A tool whose entry is removed from the file gets back the permission it
// had before the file first overrode it.
type PermissionFile struct {
	path     string
	registry *Registry
	logger   *zap.Logger

	mu       sync.Mutex
	defaults map[string]Permission
	active   map[string]bool
}

// NewPermissionFile binds an override file to a registry and records the
// current permission of every registered tool as its default.
func NewPermissionFile(path string, registry *Registry, logger *zap.Logger) *PermissionFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &PermissionFile{
		path:     path,
		registry: registry,
		logger:   logger,
		defaults: make(map[string]Permission),
		active:   make(map[string]bool),
	}
	for _, name := range registry.List() {
		if perm, ok := registry.Permission(name); ok {
			p.defaults[name] = perm
		}
	}
	return p
}

// Apply reads the file and sets each listed permission. It returns the
// names that were applied; names unknown to the registry are skipped.
// Tools overridden by the previous Apply but no longer listed are restored
// to their defaults. A file that fails to parse changes nothing.
func (p *PermissionFile) Apply() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var doc struct {
		Permissions map[string]string `toml:"permissions"`
	}
	if _, err := toml.DecodeFile(p.path, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPermissionFile, p.path, err)
	}

	parsed := make(map[string]Permission, len(doc.Permissions))
	for name, raw := range doc.Permissions {
		perm, err := ParsePermission(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: tool %s: %v", ErrInvalidPermissionFile, p.path, name, err)
		}
		parsed[name] = perm
	}

	names := make([]string, 0, len(parsed))
	for name := range parsed {
		names = append(names, name)
	}
	sort.Strings(names)

	applied := make([]string, 0, len(names))
	active := make(map[string]bool, len(names))
	for _, name := range names {
		if _, known := p.defaults[name]; !known {
			if perm, ok := p.registry.Permission(name); ok {
				p.defaults[name] = perm
			}
		}
		if !p.registry.SetPermission(name, parsed[name]) {
			p.logger.Warn("permission override for unknown tool", zap.String("tool", name))
			continue
		}
		applied = append(applied, name)
		active[name] = true
	}

	for name := range p.active {
		if active[name] {
			continue
		}
		if def, ok := p.defaults[name]; ok && p.registry.SetPermission(name, def) {
			p.logger.Info("permission override removed, default restored",
				zap.String("tool", name),
				zap.String("permission", def.String()))
		}
	}
	p.active = active
	return applied, nil
}

// Watch re-applies the file whenever it is written or replaced, until ctx
// is done. The parent directory is watched so editors that save by rename
// are picked up.
func (p *PermissionFile) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating permission watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("watching %s: %w", p.path, err)
	}
	target := filepath.Clean(p.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			applied, err := p.Apply()
			if err != nil {
				p.logger.Warn("permission reload failed", zap.Error(err))
				continue
			}
			p.logger.Info("permissions reloaded", zap.Strings("tools", applied))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("permission watcher error", zap.Error(err))
		}
	}
}
