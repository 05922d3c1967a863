package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/repositories"
)

const basePrompt = `You are a writing critic embedded in a note-taking app.
The user keeps markdown notes; you give direct, specific feedback on them.
Use the note tools to look at the workspace before commenting: note_tree
lists paths, note_view reads a note, note_search finds passages, note_edit
applies a change the user asked for. Quote the passages you critique.
Be concise and concrete; skip praise padding.`

// SystemPromptBuilder assembles the per-round system prompt: the
// critic persona plus the user's note paths so the model knows what
// the workspace contains without a tool round-trip.
type SystemPromptBuilder struct {
	noteRepo repositories.NoteRepository
	logger   *slog.Logger
}

// NewSystemPromptBuilder creates a system prompt builder
func NewSystemPromptBuilder(noteRepo repositories.NoteRepository, logger *slog.Logger) *SystemPromptBuilder {
	return &SystemPromptBuilder{noteRepo: noteRepo, logger: logger}
}

// Build renders the system prompt for one round. Note listing failures
// degrade to the base prompt rather than failing the round.
func (b *SystemPromptBuilder) Build(ctx context.Context, userID string, input llm.RoundInput) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	notes, err := b.noteRepo.ListNotes(ctx, userID)
	if err != nil {
		b.logger.Warn("failed to list notes for system prompt", "user_id", userID, "error", err)
	} else if len(notes) > 0 {
		sb.WriteString("\n\nNotes in the workspace:\n")
		for _, note := range notes {
			fmt.Fprintf(&sb, "- %s\n", note.Path)
		}
	}

	switch input.Kind {
	case llm.InputKindFileChange:
		fmt.Fprintf(&sb, "\nThe user just edited %s; the round input includes the diff. React to what changed, not the whole document.", input.Path)
	case llm.InputKindFeedbackRequest:
		fmt.Fprintf(&sb, "\nThe user asked for feedback on %s. Read it with note_view before responding.", input.Path)
	}

	return sb.String()
}
