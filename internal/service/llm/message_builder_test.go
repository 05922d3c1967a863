package llm

import (
	"encoding/json"
	"log/slog"
	"testing"

	llmModels "github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
)

func testBuilder() *MessageBuilder {
	return NewMessageBuilder(slog.Default())
}

func turnWithSteps(prompt string, steps ...*llmModels.TurnStep) *llmModels.ConversationTurn {
	return &llmModels.ConversationTurn{
		ID:     "turn-1",
		Input:  llmModels.RoundInput{Kind: llmModels.InputKindChatMessage, Prompt: prompt},
		Steps:  steps,
		Status: llmModels.TurnStatusComplete,
	}
}

func TestBuildMessagesSimpleExchange(t *testing.T) {
	turn := turnWithSteps("hello", &llmModels.TurnStep{
		Content:   "hi there",
		ToolCalls: map[string]*llmModels.ToolCall{},
	})

	messages := testBuilder().BuildMessages([]*llmModels.ConversationTurn{turn})

	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[0].Text != "hello" {
		t.Errorf("unexpected user message: %+v", messages[0])
	}
	if messages[1].Role != "assistant" || messages[1].Text != "hi there" {
		t.Errorf("unexpected assistant message: %+v", messages[1])
	}
}

func TestBuildMessagesToolExchange(t *testing.T) {
	result := json.RawMessage(`{"content":"note body"}`)
	step1 := &llmModels.TurnStep{
		Content: "let me look",
		ToolCalls: map[string]*llmModels.ToolCall{
			"call_1": {
				ID:         "call_1",
				Name:       "note_view",
				BlockIndex: 1,
				Input:      map[string]any{"path": "essay.md"},
				IsComplete: true,
				Result:     result,
			},
		},
	}
	step2 := &llmModels.TurnStep{
		Content:   "the intro is too long",
		ToolCalls: map[string]*llmModels.ToolCall{},
	}
	turn := turnWithSteps("critique essay.md", step1, step2)

	messages := testBuilder().BuildMessages([]*llmModels.ConversationTurn{turn})

	// user prompt, assistant with tool call, user tool result, assistant reply
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if len(messages[1].ToolCalls) != 1 || messages[1].ToolCalls[0].ID != "call_1" {
		t.Errorf("expected assistant tool call, got %+v", messages[1])
	}
	if messages[2].Role != "user" || len(messages[2].ToolResults) != 1 {
		t.Errorf("expected tool result message, got %+v", messages[2])
	}
	if messages[3].Role != "assistant" || messages[3].Text != "the intro is too long" {
		t.Errorf("unexpected final assistant message: %+v", messages[3])
	}
}

func TestBuildMessagesDropsDanglingToolCalls(t *testing.T) {
	step := &llmModels.TurnStep{
		Content: "partial",
		ToolCalls: map[string]*llmModels.ToolCall{
			"incomplete": {ID: "incomplete", Name: "note_view", BlockIndex: 1},
			"no_result": {
				ID: "no_result", Name: "note_search", BlockIndex: 2,
				Input: map[string]any{"query": "x"}, IsComplete: true,
			},
		},
	}
	turn := turnWithSteps("go", step)
	turn.Status = llmModels.TurnStatusCancelled

	messages := testBuilder().BuildMessages([]*llmModels.ConversationTurn{turn})

	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if len(messages[1].ToolCalls) != 0 {
		t.Errorf("dangling tool calls should be dropped, got %+v", messages[1].ToolCalls)
	}
}

func TestBuildMessagesSkipsEmptySteps(t *testing.T) {
	turn := turnWithSteps("hello",
		&llmModels.TurnStep{ToolCalls: map[string]*llmModels.ToolCall{}},
	)

	messages := testBuilder().BuildMessages([]*llmModels.ConversationTurn{turn})

	if len(messages) != 1 {
		t.Fatalf("expected only the user message, got %d", len(messages))
	}
}

func TestBuildMessagesPreservesThinking(t *testing.T) {
	turn := turnWithSteps("why?", &llmModels.TurnStep{
		Thinking:  "considering the question",
		Signature: "sig_abc",
		Content:   "because",
		ToolCalls: map[string]*llmModels.ToolCall{},
	})

	messages := testBuilder().BuildMessages([]*llmModels.ConversationTurn{turn})

	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[1].Thinking != "considering the question" || messages[1].Signature != "sig_abc" {
		t.Errorf("thinking/signature not carried: %+v", messages[1])
	}
}
