// Package tools defines the tool execution seam consumed by the scheduler.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownTool is returned when no handler is registered for a name.
var ErrUnknownTool = errors.New("unknown tool")

// Executor runs a named tool with pre-parsed arguments.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]string) (string, error)
}

// Func is a single tool handler.
type Func func(ctx context.Context, args map[string]string) (string, error)

// Registry maps tool names to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Func
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Func)}
}

// Register adds or replaces a handler.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Execute dispatches to the registered handler.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]string) (string, error) {
	r.mu.RLock()
	fn, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return fn(ctx, args)
}
