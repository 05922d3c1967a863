package llm

// ToolDefinition describes one tool the model may invoke: its name, a
// description the model sees, and a JSON-schema object for its
// arguments. Providers translate this neutral shape into their own wire
// format when building requests.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}
