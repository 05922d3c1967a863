package repositories

import (
	"context"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models"
)

// NoteRepository defines data access for notes
type NoteRepository interface {
	// GetNoteByPath retrieves a note by its path (scoped to user).
	// Returns domain.ErrNotFound if not found
	GetNoteByPath(ctx context.Context, userID, path string) (*models.Note, error)

	// ListNotes retrieves all of a user's notes ordered by path.
	// Returns an empty slice if none
	ListNotes(ctx context.Context, userID string) ([]models.Note, error)

	// SearchNotes runs a full-text search over a user's notes and
	// returns matches with highlighted snippets, best first
	SearchNotes(ctx context.Context, userID, query string, limit int) ([]models.NoteMatch, error)

	// UpsertNote creates a note at the given path or replaces its
	// content if it already exists
	UpsertNote(ctx context.Context, note *models.Note) error
}
