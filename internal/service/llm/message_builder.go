package llm

import (
	"log/slog"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
)

// MessageBuilder converts stored conversation turns into the neutral
// message form providers consume. Pure conversion; data loading happens
// in the caller.
type MessageBuilder struct {
	logger *slog.Logger
}

// NewMessageBuilder creates a message builder
func NewMessageBuilder(logger *slog.Logger) *MessageBuilder {
	return &MessageBuilder{logger: logger}
}

// BuildMessages renders a turn history, oldest first, as alternating
// user/assistant messages. Each step contributes one assistant message
// (thinking, text, tool calls) followed by a user message carrying the
// step's tool results, which is how providers expect multi-step tool
// exchanges to be replayed.
//
// Dangling tool calls (incomplete, or complete but never given a
// result) are filtered out; replaying them verbatim makes providers
// reject the whole request.
func (mb *MessageBuilder) BuildMessages(turns []*llm.ConversationTurn) []services.Message {
	messages := make([]services.Message, 0, len(turns)*2)

	for _, turn := range turns {
		if turn.Input.Prompt != "" {
			messages = append(messages, services.Message{
				Role: "user",
				Text: turn.Input.Prompt,
			})
		}

		for _, step := range turn.Steps {
			calls := mb.sanitizeToolCalls(turn.ID, step)

			assistant := services.Message{
				Role:      "assistant",
				Text:      step.Content,
				Thinking:  step.Thinking,
				Signature: step.Signature,
				ToolCalls: calls,
			}
			if assistant.Text == "" && assistant.Thinking == "" && len(calls) == 0 {
				continue
			}
			messages = append(messages, assistant)

			if len(calls) > 0 {
				messages = append(messages, services.Message{
					Role:        "user",
					ToolResults: calls,
				})
			}
		}
	}

	return messages
}

// sanitizeToolCalls returns the step's tool calls that are safe to
// replay: fully parsed and carrying a result
func (mb *MessageBuilder) sanitizeToolCalls(turnID string, step *llm.TurnStep) []*llm.ToolCall {
	ordered := step.OrderedToolCalls()
	calls := make([]*llm.ToolCall, 0, len(ordered))
	for _, tc := range ordered {
		if !tc.IsComplete || tc.Result == nil {
			mb.logger.Debug("dropping dangling tool call from history",
				"turn_id", turnID,
				"tool", tc.Name,
				"call_id", tc.ID)
			continue
		}
		calls = append(calls, tc)
	}
	return calls
}
