package anthropic

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
)

func event(name, data string) llm.RawEvent {
	return llm.RawEvent{Name: name, Data: []byte(data)}
}

func TestParseContentFlow(t *testing.T) {
	tests := []struct {
		name  string
		ev    llm.RawEvent
		check func(t *testing.T, s llm.StreamSignals)
	}{
		{
			name: "message_start carries nothing",
			ev:   event("message_start", `{"type":"message_start","message":{"id":"msg_1"}}`),
			check: func(t *testing.T, s llm.StreamSignals) {
				if len(s.BlockStarts) != 0 || s.Content != nil || s.Done || s.Err != nil {
					t.Errorf("unexpected signals: %+v", s)
				}
			},
		},
		{
			name: "text block start",
			ev:   event("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
			check: func(t *testing.T, s llm.StreamSignals) {
				if len(s.BlockStarts) != 1 || s.BlockStarts[0].Kind != llm.BlockKindContent || s.BlockStarts[0].BlockIndex != 0 {
					t.Errorf("block starts = %+v", s.BlockStarts)
				}
			},
		},
		{
			name: "text delta",
			ev:   event("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`),
			check: func(t *testing.T, s llm.StreamSignals) {
				if s.Content == nil || s.Content.Text != "Hello" || s.Content.Thinking {
					t.Errorf("content = %+v", s.Content)
				}
			},
		},
		{
			name: "thinking delta",
			ev:   event("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"hmm"}}`),
			check: func(t *testing.T, s llm.StreamSignals) {
				if s.Content == nil || s.Content.Text != "hmm" || !s.Content.Thinking {
					t.Errorf("content = %+v", s.Content)
				}
			},
		},
		{
			name: "signature delta",
			ev:   event("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"c2ln"}}`),
			check: func(t *testing.T, s llm.StreamSignals) {
				if s.Signature == nil || s.Signature.Signature != "c2ln" {
					t.Errorf("signature = %+v", s.Signature)
				}
			},
		},
		{
			name: "block stop",
			ev:   event("content_block_stop", `{"type":"content_block_stop","index":2}`),
			check: func(t *testing.T, s llm.StreamSignals) {
				if s.BlockComplete == nil || *s.BlockComplete != 2 {
					t.Errorf("block complete = %v", s.BlockComplete)
				}
			},
		},
		{
			name: "message_delta records the stop reason but does not end the stream",
			ev:   event("message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":42}}`),
			check: func(t *testing.T, s llm.StreamSignals) {
				if s.StopReason != "tool_use" {
					t.Errorf("stop reason = %q", s.StopReason)
				}
				if s.Done || s.StepDone {
					t.Error("message_delta must not finish the stream")
				}
			},
		},
		{
			name: "message_stop finishes the exchange",
			ev:   event("message_stop", `{"type":"message_stop"}`),
			check: func(t *testing.T, s llm.StreamSignals) {
				if !s.Done {
					t.Error("expected Done")
				}
			},
		},
		{
			name: "ping ignored",
			ev:   event("ping", `{"type":"ping"}`),
			check: func(t *testing.T, s llm.StreamSignals) {
				if s.Content != nil || s.Done || s.Err != nil {
					t.Errorf("unexpected signals: %+v", s)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Parse(tt.ev))
		})
	}
}

func TestParseToolUse(t *testing.T) {
	start := Parse(event("content_block_start",
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"note_view","input":{}}}`))
	if len(start.BlockStarts) != 1 {
		t.Fatal("expected block start")
	}
	bs := start.BlockStarts[0]
	if bs.Kind != llm.BlockKindToolCall ||
		bs.ToolCallID != "toolu_1" ||
		bs.ToolCallName != "note_view" ||
		bs.IsServerCall {
		t.Errorf("block start = %+v", bs)
	}

	delta := Parse(event("content_block_delta",
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"path\":"}}`))
	if len(delta.ToolCallDeltas) != 1 || delta.ToolCallDeltas[0].Text != `{"path":` || delta.ToolCallDeltas[0].BlockIndex != 1 {
		t.Errorf("tool call deltas = %+v", delta.ToolCallDeltas)
	}
}

func TestParseServerToolUse(t *testing.T) {
	start := Parse(event("content_block_start",
		`{"type":"content_block_start","index":1,"content_block":{"type":"server_tool_use","id":"srvtoolu_1","name":"web_search","input":{}}}`))
	if len(start.BlockStarts) != 1 || !start.BlockStarts[0].IsServerCall {
		t.Errorf("server tool use not flagged: %+v", start.BlockStarts)
	}

	result := Parse(event("content_block_start",
		`{"type":"content_block_start","index":2,"content_block":{"type":"web_search_tool_result","tool_use_id":"srvtoolu_1","content":[{"type":"web_search_result","url":"https://example.com"}]}}`))
	if result.ToolCallResult == nil {
		t.Fatal("expected tool call result")
	}
	if result.ToolCallResult.ToolCallID != "srvtoolu_1" {
		t.Errorf("result tool id = %q", result.ToolCallResult.ToolCallID)
	}
	if !strings.Contains(string(result.ToolCallResult.Result), "example.com") {
		t.Errorf("result payload = %s", result.ToolCallResult.Result)
	}
}

func TestParseErrors(t *testing.T) {
	topLevel := Parse(event("error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	if topLevel.Err == nil || !strings.Contains(topLevel.Err.Error(), "Overloaded") {
		t.Errorf("top-level error = %v", topLevel.Err)
	}

	// Error payloads can hide inside an otherwise normal-looking event
	nested := Parse(event("message_delta", `{"type":"message_delta","error":{"type":"api_error","message":"internal server error"}}`))
	if nested.Err == nil || !strings.Contains(nested.Err.Error(), "internal server error") {
		t.Errorf("nested error = %v", nested.Err)
	}
}

func TestBuildRequest(t *testing.T) {
	p := New("sk-test", "")
	req, err := p.BuildRequest(&services.StreamRequest{
		Model:  "claude-sonnet-4-20250514",
		System: "be helpful",
		Messages: []services.Message{
			{Role: "user", Text: "review my note"},
			{
				Role:      "assistant",
				Thinking:  "let me look",
				Signature: "sig_1",
				Text:      "checking",
				ToolCalls: []*llm.ToolCall{{
					ID: "toolu_1", Name: "note_view",
					Input: map[string]any{"path": "a.md"}, IsComplete: true,
				}},
			},
			{
				Role: "user",
				ToolResults: []*llm.ToolCall{{
					ID: "toolu_1", Name: "note_view",
					Result: json.RawMessage(`{"content":"hi"}`),
				}},
			},
		},
		Tools: []llm.ToolDefinition{{
			Name:        "note_view",
			Description: "read a note",
			InputSchema: map[string]any{"type": "object"},
		}},
		ThinkingEnabled: true,
	})
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	if req.URL != "https://api.anthropic.com/v1/messages" {
		t.Errorf("url = %q", req.URL)
	}
	if req.Header.Get("X-Api-Key") != "sk-test" {
		t.Error("api key header missing")
	}

	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["system"] != "be helpful" {
		t.Errorf("system = %v", body["system"])
	}
	if body["stream"] != true {
		t.Error("stream not requested")
	}
	if _, ok := body["thinking"]; !ok {
		t.Error("thinking config missing")
	}

	messages := body["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(messages))
	}

	assistant := messages[1].(map[string]any)
	blocks := assistant["content"].([]any)
	first := blocks[0].(map[string]any)
	if first["type"] != "thinking" || first["signature"] != "sig_1" {
		t.Errorf("thinking block must come first with its signature echoed: %v", first)
	}

	toolMsg := messages[2].(map[string]any)
	resultBlock := toolMsg["content"].([]any)[0].(map[string]any)
	if resultBlock["type"] != "tool_result" || resultBlock["tool_use_id"] != "toolu_1" {
		t.Errorf("tool result block = %v", resultBlock)
	}
}
