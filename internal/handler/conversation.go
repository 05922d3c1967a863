package handler

import (
	"log/slog"
	"net/http"

	llmModels "github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	"github.com/mruwnik/notes-critic-sub001/internal/httputil"
	llmService "github.com/mruwnik/notes-critic-sub001/internal/service/llm"
)

// ConversationHandler handles conversation HTTP requests.
// Handlers only talk to services, never repositories.
type ConversationHandler struct {
	conversationService *llmService.ConversationService
	turnService         *llmService.TurnService
	logger              *slog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(
	conversationService *llmService.ConversationService,
	turnService *llmService.TurnService,
	logger *slog.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		turnService:         turnService,
		logger:              logger,
	}
}

// CreateConversation creates a new conversation
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req llmService.CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = userID

	conv, err := h.conversationService.CreateConversation(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, conv)
}

// ListConversations retrieves the user's conversations
// GET /api/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	conversations, err := h.conversationService.ListConversations(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conversations)
}

// GetConversation retrieves a single conversation
// GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathParam(w, r, "id", "conversation ID")
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	conv, err := h.conversationService.GetConversation(r.Context(), conversationID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conv)
}

// DeleteConversation soft-deletes a conversation, interrupting its
// in-flight turn first
// DELETE /api/conversations/{id}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathParam(w, r, "id", "conversation ID")
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	if err := h.conversationService.DeleteConversation(r.Context(), conversationID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTurns returns the conversation's turn history. The in-flight
// turn, if any, is included as a live snapshot.
// GET /api/conversations/{id}/turns
func (h *ConversationHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathParam(w, r, "id", "conversation ID")
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	// Ownership check before exposing turn history
	if _, err := h.conversationService.GetConversation(r.Context(), conversationID, userID); err != nil {
		handleError(w, err)
		return
	}

	turns, err := h.turnService.ListTurns(r.Context(), conversationID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turns)
}

// CreateRound starts a new round in the conversation. Returns 409 if
// a turn is already streaming; the client interrupts first, nothing
// is queued server-side.
// POST /api/conversations/{id}/turns
func (h *ConversationHandler) CreateRound(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathParam(w, r, "id", "conversation ID")
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	var body struct {
		Input llmModels.RoundInput `json:"input"`
		Model string               `json:"model,omitempty"`
	}
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.turnService.CreateRound(r.Context(), &llmService.CreateRoundRequest{
		ConversationID: conversationID,
		UserID:         userID,
		Input:          body.Input,
		Model:          body.Model,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"turn":       resp.Turn,
		"stream_url": resp.StreamURL,
	})
}
