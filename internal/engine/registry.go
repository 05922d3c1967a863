package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mruwnik/notes-critic-sub001/internal/domain"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
)

// Registry tracks in-flight turn runners and enforces the
// one-turn-in-flight rule per conversation. Starting a round while
// another turn is still streaming for the same conversation is
// rejected, not queued.
type Registry struct {
	mu             sync.Mutex
	byConversation map[string]*TurnRunner
	byTurn         map[string]*TurnRunner
	logger         *slog.Logger
}

// NewRegistry creates an empty runner registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byConversation: make(map[string]*TurnRunner),
		byTurn:         make(map[string]*TurnRunner),
		logger:         logger,
	}
}

// Start creates a runner for the turn, registers it and begins
// execution. Returns domain.ErrTurnInFlight if the conversation
// already has a streaming turn.
func (reg *Registry) Start(ctx context.Context, cfg RunnerConfig) (*TurnRunner, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	convID := cfg.Turn.ConversationID
	if _, exists := reg.byConversation[convID]; exists {
		return nil, domain.ErrTurnInFlight
	}

	userFinish := cfg.OnFinish
	cfg.OnFinish = func(turn *llm.ConversationTurn, discarded bool) {
		reg.remove(convID, turn.ID)
		if userFinish != nil {
			userFinish(turn, discarded)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = reg.logger
	}

	runner := NewTurnRunner(ctx, cfg)
	reg.byConversation[convID] = runner
	reg.byTurn[cfg.Turn.ID] = runner
	runner.Start()

	reg.logger.Info("turn started",
		"turn_id", cfg.Turn.ID,
		"conversation_id", convID,
		"model", cfg.Turn.Model)
	return runner, nil
}

// Get returns the runner for a turn, if it is still registered
func (reg *Registry) Get(turnID string) (*TurnRunner, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	runner, ok := reg.byTurn[turnID]
	return runner, ok
}

// ActiveForConversation returns the conversation's in-flight runner
func (reg *Registry) ActiveForConversation(conversationID string) (*TurnRunner, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	runner, ok := reg.byConversation[conversationID]
	return runner, ok
}

// Cancel requests cancellation of a turn.
// Returns domain.ErrNotFound if the turn is not in flight.
func (reg *Registry) Cancel(turnID string) error {
	runner, ok := reg.Get(turnID)
	if !ok {
		return &domain.NotFoundError{Message: "no streaming turn with id " + turnID}
	}
	runner.Cancel()
	return nil
}

// CancelAll cancels every in-flight turn and waits for the runners to
// settle. Used when the whole conversation set is cleared or the
// server shuts down.
func (reg *Registry) CancelAll() {
	reg.mu.Lock()
	runners := make([]*TurnRunner, 0, len(reg.byConversation))
	for _, runner := range reg.byConversation {
		runners = append(runners, runner)
	}
	reg.mu.Unlock()

	for _, runner := range runners {
		runner.Cancel()
	}
	for _, runner := range runners {
		<-runner.Done()
	}
}

func (reg *Registry) remove(conversationID, turnID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.byConversation, conversationID)
	delete(reg.byTurn, turnID)
}
