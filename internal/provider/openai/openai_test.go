package openai

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
)

func data(s string) llm.RawEvent {
	return llm.RawEvent{Data: []byte(s)}
}

func TestParseContent(t *testing.T) {
	s := Parse(data(`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"Hi"},"finish_reason":null}]}`))
	if s.Content == nil || s.Content.Text != "Hi" || s.Content.Thinking {
		t.Errorf("content = %+v", s.Content)
	}
	if s.Content.BlockIndex != contentBlockIndex {
		t.Errorf("content index = %d", s.Content.BlockIndex)
	}
}

func TestParseReasoningContent(t *testing.T) {
	s := Parse(data(`{"choices":[{"index":0,"delta":{"reasoning_content":"thinking..."},"finish_reason":null}]}`))
	if s.Content == nil || !s.Content.Thinking || s.Content.BlockIndex != reasoningBlockIndex {
		t.Errorf("reasoning = %+v", s.Content)
	}
}

func TestParseToolCallFragments(t *testing.T) {
	// First fragment carries id and name and opens the block
	first := Parse(data(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"note_search","arguments":""}}]},"finish_reason":null}]}`))
	if len(first.BlockStarts) != 1 {
		t.Fatal("expected block start on first fragment")
	}
	if first.BlockStarts[0].ToolCallID != "call_1" || first.BlockStarts[0].ToolCallName != "note_search" {
		t.Errorf("block start = %+v", first.BlockStarts[0])
	}
	if first.BlockStarts[0].BlockIndex != toolBlockOffset {
		t.Errorf("tool block index = %d", first.BlockStarts[0].BlockIndex)
	}

	// Later fragments carry only argument text
	frag := Parse(data(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"query\":"}}]},"finish_reason":null}]}`))
	if len(frag.BlockStarts) != 0 {
		t.Error("argument fragment must not reopen the block")
	}
	if len(frag.ToolCallDeltas) != 1 || frag.ToolCallDeltas[0].Text != `{"query":` {
		t.Errorf("tool call deltas = %+v", frag.ToolCallDeltas)
	}

	second := Parse(data(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_2","type":"function","function":{"name":"note_view","arguments":""}}]},"finish_reason":null}]}`))
	if len(second.BlockStarts) != 1 || second.BlockStarts[0].BlockIndex != toolBlockOffset+1 {
		t.Errorf("second tool call block = %+v", second.BlockStarts)
	}
}

func TestParseMultipleToolCallsInOneChunk(t *testing.T) {
	// Some gateways coalesce the whole tool_calls array into a single
	// delta; every entry must survive
	s := Parse(data(`{"choices":[{"index":0,"delta":{"tool_calls":[` +
		`{"index":0,"id":"call_1","type":"function","function":{"name":"note_view","arguments":"{\"path\":\"a.md\"}"}},` +
		`{"index":1,"id":"call_2","type":"function","function":{"name":"note_search","arguments":"{\"query\":\"x\"}"}}` +
		`]},"finish_reason":null}]}`))
	if len(s.BlockStarts) != 2 {
		t.Fatalf("block starts = %+v, want 2", s.BlockStarts)
	}
	if s.BlockStarts[0].ToolCallID != "call_1" || s.BlockStarts[0].InitialInput != `{"path":"a.md"}` {
		t.Errorf("first call = %+v", s.BlockStarts[0])
	}
	if s.BlockStarts[1].ToolCallID != "call_2" ||
		s.BlockStarts[1].ToolCallName != "note_search" ||
		s.BlockStarts[1].BlockIndex != toolBlockOffset+1 {
		t.Errorf("second call = %+v", s.BlockStarts[1])
	}

	// Mixed chunk: argument fragment for one call plus a fresh call
	mixed := Parse(data(`{"choices":[{"index":0,"delta":{"tool_calls":[` +
		`{"index":0,"function":{"arguments":"{\"a\":1}"}},` +
		`{"index":1,"id":"call_3","type":"function","function":{"name":"note_tree","arguments":""}}` +
		`]},"finish_reason":null}]}`))
	if len(mixed.ToolCallDeltas) != 1 || mixed.ToolCallDeltas[0].Text != `{"a":1}` {
		t.Errorf("deltas = %+v", mixed.ToolCallDeltas)
	}
	if len(mixed.BlockStarts) != 1 || mixed.BlockStarts[0].ToolCallID != "call_3" {
		t.Errorf("starts = %+v", mixed.BlockStarts)
	}
}

func TestParseFinishMarkers(t *testing.T) {
	// finish_reason ends the reply, [DONE] ends the exchange
	finish := Parse(data(`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`))
	if !finish.StepDone || finish.StopReason != "tool_calls" {
		t.Errorf("finish = %+v", finish)
	}
	if finish.Done {
		t.Error("finish_reason must not be the exchange-done marker")
	}

	done := Parse(data(`[DONE]`))
	if !done.Done {
		t.Error("[DONE] must finish the exchange")
	}
}

func TestParseErrorEnvelope(t *testing.T) {
	s := Parse(data(`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`))
	if s.Err == nil || !strings.Contains(s.Err.Error(), "Rate limit reached") {
		t.Errorf("err = %v", s.Err)
	}
}

func TestBuildRequest(t *testing.T) {
	p := New("openai", "sk-test", "", []string{"gpt-", "o3"})

	if !p.SupportsModel("gpt-4o") || p.SupportsModel("claude-3") {
		t.Error("model prefix matching wrong")
	}

	req, err := p.BuildRequest(&services.StreamRequest{
		Model:  "gpt-4o",
		System: "be brief",
		Messages: []services.Message{
			{Role: "user", Text: "hello"},
			{
				Role: "assistant",
				ToolCalls: []*llm.ToolCall{{
					ID: "call_1", Name: "note_view",
					Input: map[string]any{"path": "a.md"}, IsComplete: true,
				}},
			},
			{
				Role: "user",
				ToolResults: []*llm.ToolCall{{
					ID: "call_1", Result: json.RawMessage(`{"content":"x"}`),
				}},
			},
		},
		Tools: []llm.ToolDefinition{{
			Name:        "note_view",
			InputSchema: map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	if req.URL != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("url = %q", req.URL)
	}
	if req.Header.Get("Authorization") != "Bearer sk-test" {
		t.Error("bearer token missing")
	}

	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}

	messages := body["messages"].([]any)
	if len(messages) != 4 {
		t.Fatalf("messages = %d, want 4 (system + user + assistant + tool)", len(messages))
	}
	if messages[0].(map[string]any)["role"] != "system" {
		t.Error("system message must come first")
	}

	toolMsg := messages[3].(map[string]any)
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "call_1" {
		t.Errorf("tool result message = %v", toolMsg)
	}

	assistant := messages[2].(map[string]any)
	calls := assistant["tool_calls"].([]any)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	if !strings.Contains(fn["arguments"].(string), `"path":"a.md"`) {
		t.Errorf("arguments not serialized as JSON string: %v", fn["arguments"])
	}
}
