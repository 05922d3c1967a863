package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
)

// OpenStreamFunc opens a backend stream for a built endpoint request
// and yields its raw wire events. The channel closes when the stream
// ends; errors after the stream opened arrive through the parser's
// error signals or as a plain channel close.
type OpenStreamFunc func(ctx context.Context, req *services.EndpointRequest) (<-chan llm.RawEvent, error)

// ToolDispatcher routes a finished, locally-executable tool call to its
// implementation. Execution failures come back as errors and are
// recorded as the call's result payload, never as a fatal turn error.
type ToolDispatcher interface {
	Execute(ctx context.Context, name string, input map[string]any) (json.RawMessage, error)
}

// BuildRequestFunc builds the next backend invocation from the turn so
// far. Called once per step; the just-finished step's tool results are
// already filled in when it runs.
type BuildRequestFunc func(turn *llm.ConversationTurn) (*services.EndpointRequest, error)

// RunnerConfig assembles a TurnRunner's collaborators and limits
type RunnerConfig struct {
	Turn         *llm.ConversationTurn
	BuildRequest BuildRequestFunc
	Open         OpenStreamFunc
	Dispatcher   ToolDispatcher

	// MaxSteps bounds runaway tool-call loops; a turn that keeps
	// requesting tools runs exactly MaxSteps inference rounds
	MaxSteps int

	// IdleTimeout fails the turn if the backend stream goes silent for
	// this long. Zero disables the watchdog.
	IdleTimeout time.Duration

	// OnFinish is called once, after the turn reached a terminal
	// status. Discarded is true when a cancelled turn ended up with no
	// steps at all and should be removed rather than persisted.
	OnFinish func(turn *llm.ConversationTurn, discarded bool)

	Logger *slog.Logger
}

// TurnRunner owns one in-flight conversation turn. It drives the
// step loop, mutates the turn's trailing step as chunks arrive, and
// broadcasts SSE events to connected clients.
//
// The runner goroutine is the turn's only mutator; everything else
// reads through Snapshot or the broadcast events.
type TurnRunner struct {
	turn         *llm.ConversationTurn
	buildRequest BuildRequestFunc
	open         OpenStreamFunc
	dispatcher   ToolDispatcher
	maxSteps     int
	idleTimeout  time.Duration
	onFinish     func(*llm.ConversationTurn, bool)
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.RWMutex // guards turn state
	statusErr error

	clientsMu sync.Mutex
	clients   map[string]chan string
	finished  bool
}

// NewTurnRunner creates a runner for a turn. Start begins execution.
func NewTurnRunner(parentCtx context.Context, cfg RunnerConfig) *TurnRunner {
	ctx, cancel := context.WithCancel(parentCtx)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnRunner{
		turn:         cfg.Turn,
		buildRequest: cfg.BuildRequest,
		open:         cfg.Open,
		dispatcher:   cfg.Dispatcher,
		maxSteps:     cfg.MaxSteps,
		idleTimeout:  cfg.IdleTimeout,
		onFinish:     cfg.OnFinish,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		clients:      make(map[string]chan string),
	}
}

// Start begins turn execution in its own goroutine
func (r *TurnRunner) Start() {
	r.mu.Lock()
	r.turn.Status = llm.TurnStatusStreaming
	r.mu.Unlock()
	go r.run()
}

// Cancel requests cooperative cancellation. The runner observes it
// before acting on the next stream event and will not start another
// step. Safe to call multiple times.
func (r *TurnRunner) Cancel() {
	r.cancel()
}

// Done is closed once the turn reached a terminal status
func (r *TurnRunner) Done() <-chan struct{} {
	return r.done
}

// TurnID returns the ID of the owned turn
func (r *TurnRunner) TurnID() string {
	return r.turn.ID
}

// ConversationID returns the conversation the turn belongs to
func (r *TurnRunner) ConversationID() string {
	return r.turn.ConversationID
}

// Status returns the turn's current status
func (r *TurnRunner) Status() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.turn.Status
}

// Err returns the turn error, if any
func (r *TurnRunner) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusErr
}

// Snapshot returns a deep copy of the turn for read-only consumers
func (r *TurnRunner) Snapshot() *llm.ConversationTurn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.turn.Clone()
}

// AddClient registers an SSE client and returns its event channel.
// A catchup event with the turn so far is queued first so reconnecting
// clients see accumulated state before live events.
func (r *TurnRunner) AddClient(clientID string) <-chan string {
	ch := make(chan string, 64)

	if catchup, err := llm.NewTurnCatchupEvent(r.Snapshot()); err == nil {
		ch <- catchup
	}

	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	if r.finished {
		close(ch)
		return ch
	}
	r.clients[clientID] = ch
	return ch
}

// RemoveClient unregisters an SSE client and closes its channel
func (r *TurnRunner) RemoveClient(clientID string) {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	if ch, exists := r.clients[clientID]; exists {
		close(ch)
		delete(r.clients, clientID)
	}
}

// broadcast sends an SSE event to all connected clients.
// Slow clients drop events rather than stalling the stream.
func (r *TurnRunner) broadcast(event string) {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	for clientID, ch := range r.clients {
		select {
		case ch <- event:
		default:
			r.logger.Warn("dropping SSE event for slow client",
				"client_id", clientID,
				"turn_id", r.turn.ID)
		}
	}
}

// closeClients sends a final event and closes every client channel
func (r *TurnRunner) closeClients(finalEvent string) {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	r.finished = true
	for clientID, ch := range r.clients {
		if finalEvent != "" {
			select {
			case ch <- finalEvent:
			default:
			}
		}
		close(ch)
		delete(r.clients, clientID)
	}
}

// run is the step loop. One iteration per inference round: stream the
// model's reply into a fresh step, then execute any local tool calls it
// requested. Continue only while tool calls are pending and the step
// budget allows.
func (r *TurnRunner) run() {
	defer close(r.done)

	if startEvent, err := llm.NewTurnStartEvent(r.turn.ID, r.turn.Model); err == nil {
		r.broadcast(startEvent)
	}

	var stopReason string
	for stepIdx := 0; stepIdx < r.maxSteps; stepIdx++ {
		step := llm.NewTurnStep()
		r.mu.Lock()
		r.turn.Steps = append(r.turn.Steps, step)
		r.mu.Unlock()

		if ev, err := llm.NewStepStartEvent(r.turn.ID, stepIdx); err == nil {
			r.broadcast(ev)
		}

		reason, err := r.runStep(step)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				r.finishCancelled()
			} else {
				r.finishError(err)
			}
			return
		}
		stopReason = reason

		pending := step.PendingToolCalls()
		if err := r.executeTools(pending); err != nil {
			r.finishCancelled()
			return
		}
		if len(pending) == 0 {
			break
		}
	}

	r.finishComplete(stopReason)
}

// runStep streams one inference round into the step. Returns the stop
// reason the backend reported, or an error (context.Canceled when the
// turn was cancelled mid-stream).
func (r *TurnRunner) runStep(step *llm.TurnStep) (string, error) {
	req, err := r.buildRequest(r.turn)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	events, err := r.open(r.ctx, req)
	if err != nil {
		return "", fmt.Errorf("open stream: %w", err)
	}

	asm := NewAssembler()
	var idle *time.Timer
	var idleC <-chan time.Time
	if r.idleTimeout > 0 {
		idle = time.NewTimer(r.idleTimeout)
		idleC = idle.C
		defer idle.Stop()
	}

	for {
		// Cancellation is observed before acting on the next event
		select {
		case <-r.ctx.Done():
			return "", context.Canceled
		default:
		}

		select {
		case <-r.ctx.Done():
			return "", context.Canceled
		case <-idleC:
			return "", fmt.Errorf("backend stream idle for %s", r.idleTimeout)
		case ev, ok := <-events:
			if !ok {
				return "", errors.New("stream ended without completion marker")
			}
			if idle != nil {
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(r.idleTimeout)
			}

			signals := req.Parse(ev)
			if signals.Err != nil {
				return "", signals.Err
			}

			done := false
			stopReason := ""
			for _, chunk := range asm.Apply(signals) {
				switch chunk.Type {
				case llm.ChunkTypeError:
					r.broadcastChunk(chunk)
					return "", errors.New(chunk.Message)
				case llm.ChunkTypeDone:
					done = true
					stopReason = chunk.StopReason
				default:
					r.applyChunk(step, chunk)
				}
				r.broadcastChunk(chunk)
			}
			if done {
				return stopReason, nil
			}
		}
	}
}

// applyChunk folds one canonical chunk into the active step
func (r *TurnRunner) applyChunk(step *llm.TurnStep, chunk llm.StreamChunk) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch chunk.Type {
	case llm.ChunkTypeThinking:
		if !chunk.IsComplete {
			step.Thinking += chunk.Text
		}
	case llm.ChunkTypeContent:
		if !chunk.IsComplete {
			step.Content += chunk.Text
		}
	case llm.ChunkTypeSignature:
		step.Signature += chunk.Text
	case llm.ChunkTypeToolCall:
		if chunk.ToolCall == nil {
			return
		}
		if existing, ok := step.ToolCalls[chunk.ToolCall.ID]; ok {
			existing.Input = chunk.ToolCall.Input
			existing.IsComplete = chunk.ToolCall.IsComplete
			return
		}
		call := *chunk.ToolCall
		step.ToolCalls[call.ID] = &call
	case llm.ChunkTypeToolCallResult:
		if target := r.resultTarget(step, chunk.ToolCallID); target != nil {
			target.Result = chunk.Result
		}
	}
}

// resultTarget finds the tool call a server-side result belongs to,
// falling back to the most recently opened call when the ID is unknown
func (r *TurnRunner) resultTarget(step *llm.TurnStep, callID string) *llm.ToolCall {
	if tc, ok := step.ToolCalls[callID]; ok {
		return tc
	}
	var last *llm.ToolCall
	for _, tc := range step.ToolCalls {
		if last == nil || tc.BlockIndex > last.BlockIndex {
			last = tc
		}
	}
	return last
}

// executeTools dispatches the step's pending local tool calls in
// stream order. Tool failures become result payloads the model can
// react to on the next step. Returns an error only on cancellation.
func (r *TurnRunner) executeTools(pending []*llm.ToolCall) error {
	for _, tc := range pending {
		select {
		case <-r.ctx.Done():
			return context.Canceled
		default:
		}

		result, err := r.dispatcher.Execute(r.ctx, tc.Name, tc.Input)
		r.mu.Lock()
		if err != nil {
			payload, _ := json.Marshal(map[string]string{"error": err.Error()})
			tc.Result = payload
			tc.ResultIsError = true
			r.logger.Warn("tool execution failed",
				"turn_id", r.turn.ID,
				"tool", tc.Name,
				"error", err)
		} else {
			tc.Result = result
		}
		chunk := llm.StreamChunk{
			Type:       llm.ChunkTypeToolCallResult,
			BlockIndex: tc.BlockIndex,
			ToolCallID: tc.ID,
			Result:     tc.Result,
		}
		r.mu.Unlock()
		r.broadcastChunk(chunk)
	}
	return nil
}

func (r *TurnRunner) broadcastChunk(chunk llm.StreamChunk) {
	if event, err := llm.NewChunkEvent(chunk); err == nil {
		r.broadcast(event)
	}
}

func (r *TurnRunner) finishComplete(stopReason string) {
	now := time.Now().UTC()
	r.mu.Lock()
	r.turn.Status = llm.TurnStatusComplete
	r.turn.CompletedAt = &now
	stepCount := len(r.turn.Steps)
	r.mu.Unlock()

	event, _ := llm.NewTurnCompleteEvent(r.turn.ID, stopReason, stepCount)
	r.closeClients(event)
	r.finish(false)
}

func (r *TurnRunner) finishError(err error) {
	now := time.Now().UTC()
	msg := err.Error()
	r.mu.Lock()
	r.turn.Status = llm.TurnStatusError
	r.turn.Error = &msg
	r.turn.CompletedAt = &now
	r.statusErr = err
	r.mu.Unlock()

	r.logger.Error("turn failed",
		"turn_id", r.turn.ID,
		"conversation_id", r.turn.ConversationID,
		"error", err)

	event, _ := llm.NewTurnErrorEvent(r.turn.ID, msg, false)
	r.closeClients(event)
	r.finish(false)
}

// finishCancelled marks the turn cancelled. An active step that
// accumulated nothing is dropped; a turn left with no steps at all is
// discarded entirely instead of persisted as an empty entry.
func (r *TurnRunner) finishCancelled() {
	now := time.Now().UTC()
	msg := "turn was cancelled"

	r.mu.Lock()
	if n := len(r.turn.Steps); n > 0 && r.turn.Steps[n-1].IsEmpty() {
		r.turn.Steps = r.turn.Steps[:n-1]
	}
	discarded := len(r.turn.Steps) == 0
	r.turn.Status = llm.TurnStatusCancelled
	r.turn.Error = &msg
	r.turn.CompletedAt = &now
	r.statusErr = context.Canceled
	r.mu.Unlock()

	event, _ := llm.NewTurnErrorEvent(r.turn.ID, msg, true)
	r.closeClients(event)
	r.finish(discarded)
}

func (r *TurnRunner) finish(discarded bool) {
	r.cancel()
	if r.onFinish != nil {
		r.onFinish(r.turn, discarded)
	}
}
