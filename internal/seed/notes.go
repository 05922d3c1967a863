package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/repositories"
)

type seedNote struct {
	path    string
	title   string
	content string
}

var sampleNotes = []seedNote{
	{
		path:  "essays/attention.md",
		title: "On Attention",
		content: `Attention is the scarcest resource we have, and we spend it like
it renews overnight. This essay argues that the tools we build to save
time mostly redistribute attention toward whoever built the tool.

The first draft of anything is a negotiation with your own focus.`,
	},
	{
		path:  "essays/drafts/tools-for-thought.md",
		title: "Tools for Thought (draft)",
		content: `Rough notes. Thesis: note-taking systems fail not because the
software is bad but because capture is cheap and synthesis is expensive.
Every system optimizes capture. Nobody optimizes synthesis.

TODO: find the Engelbart citation.`,
	},
	{
		path:  "journal/2026-08.md",
		title: "August 2026",
		content: `Reading week. Finished the chapter on distributed consensus,
started sketching the attention essay. The intro still rambles; it takes
four paragraphs before the argument shows up.`,
	},
}

// Notes upserts the sample notes for the given user. Existing notes at
// the same paths are overwritten, so reseeding resets their content.
func Notes(ctx context.Context, noteRepo repositories.NoteRepository, userID string) error {
	for _, sn := range sampleNotes {
		note := &models.Note{
			ID:      uuid.NewString(),
			UserID:  userID,
			Path:    sn.path,
			Title:   sn.title,
			Content: sn.content,
		}
		if err := noteRepo.UpsertNote(ctx, note); err != nil {
			return fmt.Errorf("seed note %s: %w", sn.path, err)
		}
	}
	return nil
}
