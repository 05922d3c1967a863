package llm

import (
	"context"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
)

// TurnRepository defines data access for conversation turns.
// Steps are stored as a JSONB document per turn; a turn row is written
// when the round starts and rewritten once streaming settles.
type TurnRepository interface {
	// CreateTurn inserts a new turn in "streaming" status
	CreateTurn(ctx context.Context, turn *llm.ConversationTurn) error

	// GetTurn retrieves a turn by ID.
	// Returns domain.ErrNotFound if not found
	GetTurn(ctx context.Context, turnID string) (*llm.ConversationTurn, error)

	// ListTurns retrieves all turns of a conversation in creation order.
	// Returns an empty slice if none
	ListTurns(ctx context.Context, conversationID string) ([]llm.ConversationTurn, error)

	// SaveTurn rewrites a turn's steps, status, error and completion
	// time. Called when the turn reaches a terminal status.
	// Returns domain.ErrNotFound if not found
	SaveTurn(ctx context.Context, turn *llm.ConversationTurn) error

	// DeleteTurn removes a turn. Used when a cancelled turn ends up
	// empty and when a rerun replaces an old turn.
	// Returns domain.ErrNotFound if not found
	DeleteTurn(ctx context.Context, turnID string) error
}
