package llm

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/mruwnik/notes-critic-sub001/internal/domain"
	llmModels "github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	llmRepo "github.com/mruwnik/notes-critic-sub001/internal/domain/repositories/llm"
	"github.com/mruwnik/notes-critic-sub001/internal/engine"
)

// ConversationService manages conversation lifecycle. Deleting a
// conversation interrupts its in-flight turn first so no runner keeps
// streaming into a soft-deleted conversation.
type ConversationService struct {
	conversationRepo llmRepo.ConversationRepository
	registry         *engine.Registry
	logger           *slog.Logger
}

// NewConversationService creates a conversation service
func NewConversationService(
	conversationRepo llmRepo.ConversationRepository,
	registry *engine.Registry,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		registry:         registry,
		logger:           logger,
	}
}

// CreateConversationRequest holds the user-supplied conversation fields
type CreateConversationRequest struct {
	UserID string
	Title  string
	Model  string
}

// CreateConversation creates a new conversation
func (s *ConversationService) CreateConversation(ctx context.Context, req *CreateConversationRequest) (*llmModels.Conversation, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.UserID, validation.Required),
		validation.Field(&req.Title, validation.Length(0, 500)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv := &llmModels.Conversation{
		ID:     uuid.NewString(),
		UserID: req.UserID,
		Title:  req.Title,
		Model:  req.Model,
	}
	if conv.Title == "" {
		conv.Title = "New conversation"
	}

	if err := s.conversationRepo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation scoped to the user
func (s *ConversationService) GetConversation(ctx context.Context, conversationID, userID string) (*llmModels.Conversation, error) {
	return s.conversationRepo.GetConversation(ctx, conversationID, userID)
}

// ListConversations retrieves the user's conversations, most recently
// updated first
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]llmModels.Conversation, error) {
	return s.conversationRepo.ListConversations(ctx, userID)
}

// DeleteConversation interrupts the conversation's in-flight turn, if
// any, and soft-deletes the conversation
func (s *ConversationService) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	if runner, ok := s.registry.ActiveForConversation(conversationID); ok {
		s.logger.Info("cancelling in-flight turn for deleted conversation",
			"conversation_id", conversationID,
			"turn_id", runner.TurnID())
		runner.Cancel()
		<-runner.Done()
	}
	return s.conversationRepo.DeleteConversation(ctx, conversationID, userID)
}
