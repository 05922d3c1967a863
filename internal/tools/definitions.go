package tools

import (
	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
)

// definitions holds the schema for every note tool, keyed by name
var definitions = map[string]llm.ToolDefinition{
	"note_view": {
		Name:        "note_view",
		Description: "Read the full content of a note by its path.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path of the note, e.g. 'projects/roadmap.md'",
				},
			},
			"required": []string{"path"},
		},
	},
	"note_tree": {
		Name:        "note_tree",
		Description: "List all notes with their paths and last-modified times.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	"note_search": {
		Name:        "note_search",
		Description: "Full-text search across all notes. Returns matching notes with snippets.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search terms",
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Maximum number of results (default 5)",
				},
			},
			"required": []string{"query"},
		},
	},
	"note_edit": {
		Name:        "note_edit",
		Description: "Edit a note. Provide old_text and new_text to replace an exact passage, or content to overwrite the whole note (creating it if missing).",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path of the note to edit",
				},
				"old_text": map[string]any{
					"type":        "string",
					"description": "Exact text to replace; must match exactly one place",
				},
				"new_text": map[string]any{
					"type":        "string",
					"description": "Replacement text",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Full new note content",
				},
			},
			"required": []string{"path"},
		},
	},
}

// Definitions returns the tool definitions for the named tools, in the
// given order. Unknown names are skipped.
func Definitions(names []string) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		if def, ok := definitions[name]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// AllToolNames returns every known tool name
func AllToolNames() []string {
	return []string{"note_view", "note_tree", "note_search", "note_edit"}
}
