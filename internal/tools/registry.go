package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Registry manages tool executors and dispatches finished tool calls.
// It is thread-safe and can be used concurrently.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]ToolExecutor
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]ToolExecutor)}
}

// Register adds a tool executor. An existing tool with the same name
// is replaced.
func (r *Registry) Register(name string, executor ToolExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = executor
}

// Get retrieves a tool executor by name, or nil
func (r *Registry) Get(name string) ToolExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.executors[name]
}

// Names returns the registered tool names in sorted order, so the
// tool list sent to providers is stable across requests
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches a finished tool call and returns its result as
// JSON. Unknown tools and execution failures come back as errors; the
// caller records them as the call's result payload so the model can
// react to them.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (json.RawMessage, error) {
	executor := r.Get(name)
	if executor == nil {
		return nil, fmt.Errorf("tool not registered: %s", name)
	}

	result, err := executor.Execute(ctx, input)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("tool %s returned an unserializable result: %w", name, err)
	}
	return payload, nil
}
