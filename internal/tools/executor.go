package tools

import "context"

// ToolExecutor defines the interface for executing a tool.
// Implementations must be thread-safe and respect context cancellation.
type ToolExecutor interface {
	// Execute runs the tool with the given input parameters.
	// The returned value must be JSON-serializable.
	Execute(ctx context.Context, input map[string]interface{}) (interface{}, error)
}
