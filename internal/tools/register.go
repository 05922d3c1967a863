package tools

import (
	"github.com/mruwnik/notes-critic-sub001/internal/domain/repositories"
)

// RegisterNoteTools creates a fresh registry with all note tools scoped
// to the given user. Called per turn so each turn sees the right user's
// notes.
func RegisterNoteTools(userID string, noteRepo repositories.NoteRepository, config *Config) *Registry {
	if config == nil {
		config = DefaultConfig()
	}

	registry := NewRegistry()
	registry.Register("note_view", NewNoteViewTool(userID, noteRepo, config))
	registry.Register("note_tree", NewNoteTreeTool(userID, noteRepo))
	registry.Register("note_search", NewNoteSearchTool(userID, noteRepo, config))
	registry.Register("note_edit", NewNoteEditTool(userID, noteRepo))
	return registry
}
