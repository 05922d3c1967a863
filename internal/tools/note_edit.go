package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mruwnik/notes-critic-sub001/internal/domain"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/models"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/repositories"
)

// NoteEditTool edits a note, either by exact text replacement or by
// overwriting the whole content (which also creates missing notes)
type NoteEditTool struct {
	userID   string
	noteRepo repositories.NoteRepository
}

// NewNoteEditTool creates an edit tool scoped to one user's notes
func NewNoteEditTool(userID string, noteRepo repositories.NoteRepository) *NoteEditTool {
	return &NoteEditTool{userID: userID, noteRepo: noteRepo}
}

// Execute implements ToolExecutor.
// Input: path (string, required), and either
//   - old_text + new_text: replace the first occurrence of old_text, or
//   - content: overwrite the whole note (creates it if missing)
func (t *NoteEditTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	path, err := pathParam(input)
	if err != nil {
		return nil, err
	}

	oldText, hasOld := input["old_text"].(string)
	newText, hasNew := input["new_text"].(string)
	content, hasContent := input["content"].(string)

	switch {
	case hasOld && hasNew:
		return t.replaceText(ctx, path, oldText, newText)
	case hasContent:
		return t.overwrite(ctx, path, content)
	default:
		return nil, errors.New("provide either old_text and new_text, or content")
	}
}

func (t *NoteEditTool) replaceText(ctx context.Context, path, oldText, newText string) (interface{}, error) {
	if oldText == "" {
		return nil, errors.New("old_text must not be empty")
	}

	note, err := t.noteRepo.GetNoteByPath(ctx, t.userID, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("note not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read note: %w", err)
	}

	count := strings.Count(note.Content, oldText)
	if count == 0 {
		return nil, fmt.Errorf("old_text not found in %s", path)
	}
	if count > 1 {
		return nil, fmt.Errorf("old_text matches %d places in %s, make it more specific", count, path)
	}

	note.Content = strings.Replace(note.Content, oldText, newText, 1)
	note.UpdatedAt = time.Now().UTC()
	if err := t.noteRepo.UpsertNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}

	return map[string]interface{}{
		"path":     note.Path,
		"replaced": true,
	}, nil
}

func (t *NoteEditTool) overwrite(ctx context.Context, path, content string) (interface{}, error) {
	created := false
	note, err := t.noteRepo.GetNoteByPath(ctx, t.userID, path)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to read note: %w", err)
		}
		created = true
		note = &models.Note{
			ID:        uuid.NewString(),
			UserID:    t.userID,
			Path:      path,
			Title:     titleFromPath(path),
			CreatedAt: time.Now().UTC(),
		}
	}

	note.Content = content
	note.UpdatedAt = time.Now().UTC()
	if err := t.noteRepo.UpsertNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}

	return map[string]interface{}{
		"path":    note.Path,
		"created": created,
	}, nil
}

func titleFromPath(path string) string {
	base := path
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, ".md")
}
