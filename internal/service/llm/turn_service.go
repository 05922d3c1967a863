package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/mruwnik/notes-critic-sub001/internal/capabilities"
	"github.com/mruwnik/notes-critic-sub001/internal/domain"
	llmModels "github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/repositories"
	llmRepo "github.com/mruwnik/notes-critic-sub001/internal/domain/repositories/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
	"github.com/mruwnik/notes-critic-sub001/internal/engine"
	"github.com/mruwnik/notes-critic-sub001/internal/tools"
)

// TurnServiceConfig carries the tunables the turn service needs
type TurnServiceConfig struct {
	// MaxSteps bounds the tool-call loop per turn
	MaxSteps int

	// IdleTimeout fails a turn whose backend stream goes silent.
	// Zero disables the watchdog.
	IdleTimeout time.Duration

	// MaxTokens per inference round
	MaxTokens int

	// DefaultModel is used when the conversation has no model set
	DefaultModel string

	// ThinkingBudget enables extended thinking when the model
	// supports it. Zero disables thinking.
	ThinkingBudget int
}

// TurnService creates rounds, kicks off engine runs and routes
// interrupt/rerun requests to the in-flight runners. Persistence
// happens at the edges: a turn row is written when the round starts
// and rewritten once when the runner settles.
type TurnService struct {
	conversationRepo llmRepo.ConversationRepository
	turnRepo         llmRepo.TurnRepository
	noteRepo         repositories.NoteRepository
	txManager        repositories.TransactionManager
	registry         *engine.Registry
	providers        *ProviderSet
	capabilities     *capabilities.Registry
	messageBuilder   *MessageBuilder
	systemPrompt     *SystemPromptBuilder
	toolsConfig      *tools.Config
	config           TurnServiceConfig
	logger           *slog.Logger
}

// NewTurnService creates a turn service
func NewTurnService(
	conversationRepo llmRepo.ConversationRepository,
	turnRepo llmRepo.TurnRepository,
	noteRepo repositories.NoteRepository,
	txManager repositories.TransactionManager,
	registry *engine.Registry,
	providers *ProviderSet,
	capabilityRegistry *capabilities.Registry,
	toolsConfig *tools.Config,
	cfg TurnServiceConfig,
	logger *slog.Logger,
) *TurnService {
	return &TurnService{
		conversationRepo: conversationRepo,
		turnRepo:         turnRepo,
		noteRepo:         noteRepo,
		txManager:        txManager,
		registry:         registry,
		providers:        providers,
		capabilities:     capabilityRegistry,
		messageBuilder:   NewMessageBuilder(logger),
		systemPrompt:     NewSystemPromptBuilder(noteRepo, logger),
		toolsConfig:      toolsConfig,
		config:           cfg,
		logger:           logger,
	}
}

// CreateRoundRequest is one user-initiated round
type CreateRoundRequest struct {
	ConversationID string
	UserID         string
	Input          llmModels.RoundInput
	Model          string

	// replacesTurnID keeps the turn being rerun out of the history fed
	// to the model. The row itself is removed by Rerun, and only after
	// the replacement started.
	replacesTurnID string
}

// CreateRoundResponse returns the new turn snapshot and where to
// connect for live events
type CreateRoundResponse struct {
	Turn      *llmModels.ConversationTurn
	StreamURL string
}

// CreateRound validates the round input, persists a new streaming
// turn and starts the engine run. Returns domain.ErrTurnInFlight if
// the conversation already has a streaming turn; the caller retries
// after interrupting, nothing is queued.
func (s *TurnService) CreateRound(ctx context.Context, req *CreateRoundRequest) (*CreateRoundResponse, error) {
	if err := s.validateRound(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv, err := s.conversationRepo.GetConversation(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = conv.Model
	}
	if model == "" {
		model = s.config.DefaultModel
	}

	provider, open, err := s.providers.ForModel(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	input := req.Input
	renderPrompt(&input)

	history, err := s.loadHistory(ctx, req.ConversationID, req.replacesTurnID)
	if err != nil {
		return nil, err
	}

	turn := &llmModels.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Input:          input,
		Steps:          []*llmModels.TurnStep{},
		Status:         llmModels.TurnStatusStreaming,
		Model:          model,
		CreatedAt:      time.Now().UTC(),
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.turnRepo.CreateTurn(txCtx, turn); err != nil {
			return err
		}
		return s.conversationRepo.TouchConversation(txCtx, req.ConversationID)
	})
	if err != nil {
		return nil, err
	}

	system := s.systemPrompt.Build(ctx, req.UserID, input)
	dispatcher := tools.RegisterNoteTools(req.UserID, s.noteRepo, s.toolsConfig)
	definitions := tools.Definitions(dispatcher.Names())

	thinkingBudget := 0
	if s.config.ThinkingBudget > 0 && s.capabilities.SupportsThinking(provider.Name(), model) {
		thinkingBudget = s.config.ThinkingBudget
	}

	buildRequest := func(live *llmModels.ConversationTurn) (*services.EndpointRequest, error) {
		messages := s.messageBuilder.BuildMessages(append(history, live))
		return provider.BuildRequest(&services.StreamRequest{
			Model:           model,
			System:          system,
			Messages:        messages,
			Tools:           definitions,
			ThinkingEnabled: thinkingBudget > 0,
			ThinkingBudget:  thinkingBudget,
			MaxTokens:       s.config.MaxTokens,
		})
	}

	// The runner outlives the HTTP request, so it gets a fresh
	// context; cancellation goes through the registry instead
	_, err = s.registry.Start(context.Background(), engine.RunnerConfig{
		Turn:         turn,
		BuildRequest: buildRequest,
		Open:         open,
		Dispatcher:   dispatcher,
		MaxSteps:     s.config.MaxSteps,
		IdleTimeout:  s.config.IdleTimeout,
		OnFinish:     s.persistFinishedTurn,
		Logger:       s.logger,
	})
	if err != nil {
		// The turn row was already written; clean it up so a retry
		// after interrupting does not leave orphans
		if delErr := s.turnRepo.DeleteTurn(ctx, turn.ID); delErr != nil {
			s.logger.Error("failed to delete rejected turn", "turn_id", turn.ID, "error", delErr)
		}
		return nil, err
	}

	return &CreateRoundResponse{
		Turn:      turn.Clone(),
		StreamURL: fmt.Sprintf("/api/turns/%s/stream", turn.ID),
	}, nil
}

// Interrupt requests cancellation of the user's in-flight turn.
// Returns domain.ErrNotFound if no such turn is streaming.
func (s *TurnService) Interrupt(ctx context.Context, userID, turnID string) error {
	runner, ok := s.registry.Get(turnID)
	if !ok {
		return &domain.NotFoundError{Message: "no streaming turn with id " + turnID}
	}
	if _, err := s.conversationRepo.GetConversation(ctx, runner.ConversationID(), userID); err != nil {
		return err
	}
	runner.Cancel()
	return nil
}

// Rerun cancels the turn if it is still streaming and starts a fresh
// turn with the same round input. The replacement gets a new ID and
// the old turn is removed only once the replacement is running, so a
// rejected rerun leaves the conversation exactly as it was.
func (s *TurnService) Rerun(ctx context.Context, userID, turnID string) (*CreateRoundResponse, error) {
	old, err := s.lookupTurn(ctx, turnID)
	if err != nil {
		return nil, err
	}
	if _, err := s.conversationRepo.GetConversation(ctx, old.ConversationID, userID); err != nil {
		return nil, err
	}

	if runner, ok := s.registry.Get(turnID); ok {
		runner.Cancel()
		<-runner.Done()
	}

	resp, err := s.CreateRound(ctx, &CreateRoundRequest{
		ConversationID: old.ConversationID,
		UserID:         userID,
		Input:          old.Input,
		Model:          old.Model,
		replacesTurnID: turnID,
	})
	if err != nil {
		return nil, err
	}

	// An interrupted empty turn may already be gone at this point
	if err := s.turnRepo.DeleteTurn(ctx, turnID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("failed to delete replaced turn", "turn_id", turnID, "error", err)
	}

	s.logger.Info("rerunning turn",
		"old_turn_id", turnID,
		"new_turn_id", resp.Turn.ID,
		"conversation_id", old.ConversationID)
	return resp, nil
}

// Runner exposes the in-flight runner for the SSE handler
func (s *TurnService) Runner(turnID string) (*engine.TurnRunner, bool) {
	return s.registry.Get(turnID)
}

// GetTurn returns one of the user's turns, preferring the live
// in-flight snapshot over the stale database row
func (s *TurnService) GetTurn(ctx context.Context, userID, turnID string) (*llmModels.ConversationTurn, error) {
	turn, err := s.lookupTurn(ctx, turnID)
	if err != nil {
		return nil, err
	}
	// The scoped conversation lookup doubles as the ownership check;
	// someone else's turn comes back as not found
	if _, err := s.conversationRepo.GetConversation(ctx, turn.ConversationID, userID); err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *TurnService) lookupTurn(ctx context.Context, turnID string) (*llmModels.ConversationTurn, error) {
	if runner, ok := s.registry.Get(turnID); ok {
		return runner.Snapshot(), nil
	}
	return s.turnRepo.GetTurn(ctx, turnID)
}

// ListTurns returns a conversation's turn history. The in-flight
// turn, if any, is overlaid with its live snapshot.
func (s *TurnService) ListTurns(ctx context.Context, conversationID string) ([]llmModels.ConversationTurn, error) {
	turns, err := s.turnRepo.ListTurns(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if runner, ok := s.registry.ActiveForConversation(conversationID); ok {
		snapshot := runner.Snapshot()
		for i := range turns {
			if turns[i].ID == snapshot.ID {
				turns[i] = *snapshot
				return turns, nil
			}
		}
		turns = append(turns, *snapshot)
	}
	return turns, nil
}

// persistFinishedTurn writes the settled turn back. Runs on the
// runner goroutine after the turn reached a terminal status, so it
// uses a fresh context rather than the long-gone request's.
func (s *TurnService) persistFinishedTurn(turn *llmModels.ConversationTurn, discarded bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if discarded {
		if err := s.turnRepo.DeleteTurn(ctx, turn.ID); err != nil {
			s.logger.Error("failed to delete discarded turn", "turn_id", turn.ID, "error", err)
		} else {
			s.logger.Info("discarded empty cancelled turn", "turn_id", turn.ID)
		}
		return
	}

	if err := s.turnRepo.SaveTurn(ctx, turn); err != nil {
		s.logger.Error("failed to persist finished turn",
			"turn_id", turn.ID,
			"status", turn.Status,
			"error", err)
		return
	}

	s.logger.Info("turn persisted",
		"turn_id", turn.ID,
		"status", turn.Status,
		"steps", len(turn.Steps))
}

// loadHistory fetches the conversation's settled turns for message
// building. The turn being created is not in the list yet, and the
// turn a rerun replaces is skipped.
func (s *TurnService) loadHistory(ctx context.Context, conversationID, excludeTurnID string) ([]*llmModels.ConversationTurn, error) {
	turns, err := s.turnRepo.ListTurns(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	history := make([]*llmModels.ConversationTurn, 0, len(turns))
	for i := range turns {
		if turns[i].IsComplete() && turns[i].ID != excludeTurnID {
			history = append(history, &turns[i])
		}
	}
	return history, nil
}

// renderPrompt fills Input.Prompt for the structured input kinds so
// downstream consumers always have the literal text that was sent
func renderPrompt(input *llmModels.RoundInput) {
	if input.Prompt != "" {
		return
	}
	switch input.Kind {
	case llmModels.InputKindFileChange:
		input.Prompt = fmt.Sprintf("I just edited %s:\n```diff\n%s\n```", input.Path, input.Diff)
	case llmModels.InputKindFeedbackRequest:
		input.Prompt = fmt.Sprintf("Please give me feedback on %s.", input.Path)
	}
}

func (s *TurnService) validateRound(req *CreateRoundRequest) error {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.ConversationID, validation.Required),
		validation.Field(&req.UserID, validation.Required),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&req.Input,
		validation.Field(&req.Input.Kind, validation.Required, validation.In(
			llmModels.InputKindChatMessage,
			llmModels.InputKindFileChange,
			llmModels.InputKindFeedbackRequest,
		)),
		validation.Field(&req.Input.Prompt,
			validation.Required.When(req.Input.Kind == llmModels.InputKindChatMessage)),
		validation.Field(&req.Input.Path,
			validation.Required.When(req.Input.Kind != llmModels.InputKindChatMessage)),
	)
}
