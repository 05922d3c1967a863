package handler

import (
	"log/slog"
	"net/http"

	"github.com/mruwnik/notes-critic-sub001/internal/httputil"
	llmService "github.com/mruwnik/notes-critic-sub001/internal/service/llm"
)

// TurnHandler handles per-turn HTTP requests: fetch, interrupt, rerun
type TurnHandler struct {
	turnService *llmService.TurnService
	logger      *slog.Logger
}

// NewTurnHandler creates a new turn handler
func NewTurnHandler(turnService *llmService.TurnService, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{turnService: turnService, logger: logger}
}

// GetTurn returns a turn, live snapshot if it is still streaming
// GET /api/turns/{id}
func (h *TurnHandler) GetTurn(w http.ResponseWriter, r *http.Request) {
	turnID, ok := pathParam(w, r, "id", "turn ID")
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	turn, err := h.turnService.GetTurn(r.Context(), userID, turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turn)
}

// Interrupt cancels an in-flight turn. Partial content streamed so
// far stays; only an entirely empty turn is discarded.
// POST /api/turns/{id}/interrupt
func (h *TurnHandler) Interrupt(w http.ResponseWriter, r *http.Request) {
	turnID, ok := pathParam(w, r, "id", "turn ID")
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	if err := h.turnService.Interrupt(r.Context(), userID, turnID); err != nil {
		handleError(w, err)
		return
	}

	h.logger.Info("turn interrupt requested", "turn_id", turnID)
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"turn_id": turnID,
		"status":  "cancelling",
	})
}

// Rerun cancels the turn if needed and replays its round input as a
// fresh turn with a new ID
// POST /api/turns/{id}/rerun
func (h *TurnHandler) Rerun(w http.ResponseWriter, r *http.Request) {
	turnID, ok := pathParam(w, r, "id", "turn ID")
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	resp, err := h.turnService.Rerun(r.Context(), userID, turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"turn":       resp.Turn,
		"stream_url": resp.StreamURL,
	})
}
