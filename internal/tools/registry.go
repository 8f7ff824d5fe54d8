package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry holds all available capability descriptors and provides lookup.
// It is thread-safe and supports registration at runtime (manifest reload).
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Descriptor
	logger *zap.Logger
}

// NewRegistry creates a new empty capability registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]*Descriptor),
		logger: logger,
	}
}

// Register adds a descriptor to the registry.
// Returns an error if a descriptor with the same name already exists.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, d.Name)
	}

	r.tools[d.Name] = d
	r.logger.Debug("Registered tool",
		zap.String("name", d.Name),
		zap.String("server", d.ServerID))
	return nil
}

// MustRegister registers a descriptor and panics on error.
// Use this for static registration at init time.
func (r *Registry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", d.Name, err))
	}
}

// Replace swaps a descriptor in place, registering it if absent.
// Used by the manifest watcher on hot reload.
func (r *Registry) Replace(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[d.Name] = d
	return nil
}

// Unregister removes a descriptor by name. Missing names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a descriptor by name, or nil if not found.
func (r *Registry) Get(name string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if a capability with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// GetMultiple returns descriptors matching the given names.
// Missing names are silently skipped.
func (r *Registry) GetMultiple(names []string) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Descriptor, 0, len(names))
	for _, name := range names {
		if d, ok := r.tools[name]; ok {
			result = append(result, d)
		}
	}
	return result
}

// All returns all registered descriptors sorted by name.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Names returns all registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke runs a capability by name with the given arguments.
// Returns ErrToolNotFound if the capability doesn't exist.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	d := r.Get(name)
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return r.InvokeDescriptor(ctx, d, args)
}

// InvokeDescriptor runs a specific capability with the given arguments.
func (r *Registry) InvokeDescriptor(ctx context.Context, d *Descriptor, args map[string]any) (*Result, error) {
	start := time.Now()

	if err := validateArgs(d, args); err != nil {
		return &Result{
			ToolName:   d.Name,
			Err:        err,
			DurationMs: time.Since(start).Milliseconds(),
		}, err
	}

	r.logger.Debug("Invoking tool", zap.String("name", d.Name))
	value, err := d.Invoke(ctx, args)

	duration := time.Since(start)
	r.logger.Debug("Tool completed",
		zap.String("name", d.Name),
		zap.Duration("duration", duration),
		zap.Bool("success", err == nil))

	return &Result{
		ToolName:   d.Name,
		Value:      value,
		Err:        err,
		DurationMs: duration.Milliseconds(),
	}, err
}

// validateArgs checks that all required arguments are present.
func validateArgs(d *Descriptor, args map[string]any) error {
	for _, required := range d.Parameters.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}
	return nil
}
