package llm

import (
	"context"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
)

// ConversationRepository defines data access for conversations
type ConversationRepository interface {
	// CreateConversation creates a new conversation
	CreateConversation(ctx context.Context, conv *llm.Conversation) error

	// GetConversation retrieves a conversation by ID (scoped to user).
	// Returns domain.ErrNotFound if not found
	GetConversation(ctx context.Context, conversationID, userID string) (*llm.Conversation, error)

	// ListConversations retrieves all of a user's conversations,
	// most recently updated first. Returns an empty slice if none
	ListConversations(ctx context.Context, userID string) ([]llm.Conversation, error)

	// TouchConversation bumps updated_at, used when a new turn lands
	TouchConversation(ctx context.Context, conversationID string) error

	// DeleteConversation soft-deletes a conversation.
	// Returns domain.ErrNotFound if not found or already deleted
	DeleteConversation(ctx context.Context, conversationID, userID string) error
}
