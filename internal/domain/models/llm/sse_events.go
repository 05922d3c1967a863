package llm

import (
	"encoding/json"
	"fmt"
)

// SSE event type constants
const (
	SSEEventTurnStart    = "turn_start"    // Turn streaming has begun
	SSEEventStepStart    = "step_start"    // A new inference step was appended
	SSEEventChunk        = "chunk"         // One canonical stream chunk
	SSEEventTurnCatchup  = "turn_catchup"  // Full turn snapshot (reconnection)
	SSEEventTurnComplete = "turn_complete" // Turn finished successfully
	SSEEventTurnError    = "turn_error"    // Turn errored or was cancelled
)

// TurnStartEvent signals that streaming has begun for a turn
type TurnStartEvent struct {
	TurnID string `json:"turn_id"`
	Model  string `json:"model"`
}

// StepStartEvent signals that a new step was appended to the turn
type StepStartEvent struct {
	TurnID    string `json:"turn_id"`
	StepIndex int    `json:"step_index"`
}

// TurnCatchupEvent replays the full turn state so far (for reconnection)
type TurnCatchupEvent struct {
	Turn *ConversationTurn `json:"turn"`
}

// TurnCompleteEvent signals that the turn has finished successfully
type TurnCompleteEvent struct {
	TurnID     string `json:"turn_id"`
	StopReason string `json:"stop_reason,omitempty"`
	StepCount  int    `json:"step_count"`
}

// TurnErrorEvent signals that the turn errored or was cancelled
type TurnErrorEvent struct {
	TurnID      string `json:"turn_id"`
	Error       string `json:"error"`
	IsCancelled bool   `json:"is_cancelled,omitempty"`
}

// FormatSSE formats an event for transmission:
//
//	event: event_name
//	data: {"field": "value"}
func FormatSSE(eventType string, data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal SSE event data: %w", err)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(jsonData)), nil
}

// NewTurnStartEvent creates a turn_start SSE event
func NewTurnStartEvent(turnID, model string) (string, error) {
	return FormatSSE(SSEEventTurnStart, TurnStartEvent{TurnID: turnID, Model: model})
}

// NewStepStartEvent creates a step_start SSE event
func NewStepStartEvent(turnID string, stepIndex int) (string, error) {
	return FormatSSE(SSEEventStepStart, StepStartEvent{TurnID: turnID, StepIndex: stepIndex})
}

// NewChunkEvent creates a chunk SSE event from a canonical stream chunk
func NewChunkEvent(chunk StreamChunk) (string, error) {
	return FormatSSE(SSEEventChunk, chunk)
}

// NewTurnCatchupEvent creates a turn_catchup SSE event
func NewTurnCatchupEvent(turn *ConversationTurn) (string, error) {
	return FormatSSE(SSEEventTurnCatchup, TurnCatchupEvent{Turn: turn})
}

// NewTurnCompleteEvent creates a turn_complete SSE event
func NewTurnCompleteEvent(turnID, stopReason string, stepCount int) (string, error) {
	return FormatSSE(SSEEventTurnComplete, TurnCompleteEvent{
		TurnID:     turnID,
		StopReason: stopReason,
		StepCount:  stepCount,
	})
}

// NewTurnErrorEvent creates a turn_error SSE event
func NewTurnErrorEvent(turnID, errMsg string, cancelled bool) (string, error) {
	return FormatSSE(SSEEventTurnError, TurnErrorEvent{
		TurnID:      turnID,
		Error:       errMsg,
		IsCancelled: cancelled,
	})
}
