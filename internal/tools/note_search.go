package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/repositories"
)

// NoteSearchTool runs full-text search over the user's notes
type NoteSearchTool struct {
	userID   string
	noteRepo repositories.NoteRepository
	config   *Config
}

// NewNoteSearchTool creates a search tool scoped to one user's notes
func NewNoteSearchTool(userID string, noteRepo repositories.NoteRepository, config *Config) *NoteSearchTool {
	if config == nil {
		config = DefaultConfig()
	}
	return &NoteSearchTool{userID: userID, noteRepo: noteRepo, config: config}
}

// Execute implements ToolExecutor.
// Input: query (string, required), limit (number, optional).
// Returns {query, matches: [{path, title, snippet}], count}.
func (t *NoteSearchTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	query, ok := input["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, errors.New("missing required parameter: query (string)")
	}

	limit := t.config.SearchDefaultLimit
	if raw, ok := input["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
		if limit > t.config.SearchMaxLimit {
			limit = t.config.SearchMaxLimit
		}
	}

	matches, err := t.noteRepo.SearchNotes(ctx, t.userID, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]map[string]interface{}, 0, len(matches))
	for _, match := range matches {
		results = append(results, map[string]interface{}{
			"path":    match.Path,
			"title":   match.Title,
			"snippet": match.Snippet,
		})
	}

	return map[string]interface{}{
		"query":   query,
		"matches": results,
		"count":   len(results),
	}, nil
}
