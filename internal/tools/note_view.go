package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mruwnik/notes-critic-sub001/internal/domain"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/repositories"
)

// NoteViewTool reads a note's content by path
type NoteViewTool struct {
	userID   string
	noteRepo repositories.NoteRepository
	config   *Config
}

// NewNoteViewTool creates a view tool scoped to one user's notes
func NewNoteViewTool(userID string, noteRepo repositories.NoteRepository, config *Config) *NoteViewTool {
	if config == nil {
		config = DefaultConfig()
	}
	return &NoteViewTool{userID: userID, noteRepo: noteRepo, config: config}
}

// Execute implements ToolExecutor.
// Input: path (string, required).
// Returns {path, title, content, truncated}.
func (t *NoteViewTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	path, err := pathParam(input)
	if err != nil {
		return nil, err
	}

	note, err := t.noteRepo.GetNoteByPath(ctx, t.userID, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("note not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read note: %w", err)
	}

	content := note.Content
	truncated := false
	if len(content) > t.config.MaxContentSize {
		content = content[:t.config.MaxContentSize] + "\n\n[Content truncated - too large to display fully]"
		truncated = true
	}

	return map[string]interface{}{
		"path":      note.Path,
		"title":     note.Title,
		"content":   content,
		"truncated": truncated,
	}, nil
}

// pathParam extracts and normalizes the required path parameter
func pathParam(input map[string]interface{}) (string, error) {
	path, ok := input["path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return "", errors.New("missing required parameter: path (string)")
	}
	return strings.TrimPrefix(strings.TrimSpace(path), "/"), nil
}
