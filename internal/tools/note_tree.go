package tools

import (
	"context"
	"fmt"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/repositories"
)

// NoteTreeTool lists all of the user's notes
type NoteTreeTool struct {
	userID   string
	noteRepo repositories.NoteRepository
}

// NewNoteTreeTool creates a tree tool scoped to one user's notes
func NewNoteTreeTool(userID string, noteRepo repositories.NoteRepository) *NoteTreeTool {
	return &NoteTreeTool{userID: userID, noteRepo: noteRepo}
}

// Execute implements ToolExecutor. Takes no parameters.
// Returns {notes: [{path, title, updated_at}], count}.
func (t *NoteTreeTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	notes, err := t.noteRepo.ListNotes(ctx, t.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	entries := make([]map[string]interface{}, 0, len(notes))
	for _, note := range notes {
		entries = append(entries, map[string]interface{}{
			"path":       note.Path,
			"title":      note.Title,
			"updated_at": note.UpdatedAt,
		})
	}

	return map[string]interface{}{
		"notes": entries,
		"count": len(entries),
	}, nil
}
