package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	llmModels "github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	"github.com/mruwnik/notes-critic-sub001/internal/handler/sse"
	"github.com/mruwnik/notes-critic-sub001/internal/httputil"
	llmService "github.com/mruwnik/notes-critic-sub001/internal/service/llm"
)

// SSEHandler streams turn events to clients over Server-Sent Events
type SSEHandler struct {
	turnService *llmService.TurnService
	config      *sse.Config
	logger      *slog.Logger
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(turnService *llmService.TurnService, config *sse.Config, logger *slog.Logger) *SSEHandler {
	return &SSEHandler{
		turnService: turnService,
		config:      config,
		logger:      logger,
	}
}

// StreamTurn handles GET /api/turns/{id}/stream.
//
// For an in-flight turn the client gets a catchup snapshot followed by
// live events until the turn settles. For an already-settled turn the
// stored snapshot and its terminal event are replayed so reconnecting
// clients converge on the same state either way.
func (h *SSEHandler) StreamTurn(w http.ResponseWriter, r *http.Request) {
	turnID, ok := pathParam(w, r, "id", "turn ID")
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	// Ownership is checked before the connection upgrades to a
	// stream, while a plain error response is still possible
	turn, err := h.turnService.GetTurn(r.Context(), userID, turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	runner, live := h.turnService.Runner(turnID)
	if !live {
		h.replaySettledTurn(w, flusher, r, userID, turn)
		return
	}

	clientID := uuid.NewString()
	events := runner.AddClient(clientID)
	defer runner.RemoveClient(clientID)

	h.logger.Debug("SSE client connected",
		"turn_id", turnID,
		"client_id", clientID)

	h.pumpEvents(r, w, flusher, events, turnID, clientID)
}

// pumpEvents forwards runner events to the client until the turn
// settles or the client goes away. Keepalive comments are written from
// this same loop; the ResponseWriter takes writes from one goroutine
// only, so frames never interleave.
func (h *SSEHandler) pumpEvents(r *http.Request, w http.ResponseWriter, flusher http.Flusher, events <-chan string, turnID, clientID string) {
	keepAlive := time.NewTicker(h.config.KeepAliveInterval)
	defer keepAlive.Stop()
	comment := sse.NewCommentWriter(w, flusher)

	for {
		select {
		case event, open := <-events:
			if !open {
				h.logger.Debug("event channel closed, ending stream",
					"turn_id", turnID,
					"client_id", clientID)
				return
			}
			if _, err := fmt.Fprint(w, event); err != nil {
				h.logger.Debug("client disconnected during write",
					"turn_id", turnID,
					"client_id", clientID)
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if err := comment.WriteKeepAlive(); err != nil {
				h.logger.Debug("keepalive write failed, ending stream",
					"turn_id", turnID,
					"client_id", clientID,
					"error", err)
				return
			}
		case <-r.Context().Done():
			h.logger.Debug("SSE client disconnected",
				"turn_id", turnID,
				"client_id", clientID)
			return
		}
	}
}

// replaySettledTurn sends the stored turn state to a client that
// connected after the runner finished
func (h *SSEHandler) replaySettledTurn(w http.ResponseWriter, flusher http.Flusher, r *http.Request, userID string, turn *llmModels.ConversationTurn) {
	// The runner may have settled between the ownership check and the
	// registry lookup; re-read so the replay carries terminal state
	if !turn.IsComplete() {
		if fresh, err := h.turnService.GetTurn(r.Context(), userID, turn.ID); err == nil {
			turn = fresh
		}
	}

	if catchup, err := llmModels.NewTurnCatchupEvent(turn); err == nil {
		fmt.Fprint(w, catchup)
	}

	var terminal string
	switch turn.Status {
	case llmModels.TurnStatusComplete:
		terminal, _ = llmModels.NewTurnCompleteEvent(turn.ID, "", len(turn.Steps))
	case llmModels.TurnStatusCancelled:
		terminal, _ = llmModels.NewTurnErrorEvent(turn.ID, errorMessage(turn), true)
	case llmModels.TurnStatusError:
		terminal, _ = llmModels.NewTurnErrorEvent(turn.ID, errorMessage(turn), false)
	}
	if terminal != "" {
		fmt.Fprint(w, terminal)
	}
	flusher.Flush()
}

func errorMessage(turn *llmModels.ConversationTurn) string {
	if turn.Error != nil {
		return *turn.Error
	}
	return ""
}
