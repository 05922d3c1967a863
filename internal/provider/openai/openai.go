package openai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Fixed block index layout for a format that has no block indexes of
// its own: reasoning first, then content, then one block per tool call.
const (
	reasoningBlockIndex = 0
	contentBlockIndex   = 1
	toolBlockOffset     = 2
)

// Provider builds Chat Completions requests for OpenAI and
// OpenAI-compatible backends
type Provider struct {
	name    string
	apiKey  string
	baseURL string
	models  []string
}

// New creates a provider for an OpenAI-compatible endpoint. models
// lists the model prefixes this endpoint serves.
func New(name, apiKey, baseURL string, models []string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		name:    name,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		models:  models,
	}
}

// Name returns the configured provider name
func (p *Provider) Name() string { return p.name }

// SupportsModel returns true if the model matches a configured prefix
func (p *Provider) SupportsModel(model string) bool {
	for _, prefix := range p.models {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// BuildRequest translates a neutral stream request into a Chat
// Completions invocation
func (p *Provider) BuildRequest(req *services.StreamRequest) (*services.EndpointRequest, error) {
	messages := []map[string]any{}
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	messages = append(messages, buildMessages(req.Messages)...)

	body := map[string]any{
		"model":    req.Model,
		"stream":   true,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		body["max_completion_tokens"] = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.InputSchema,
				},
			})
		}
		body["tools"] = tools
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+p.apiKey)

	return &services.EndpointRequest{
		URL:    p.baseURL + "/chat/completions",
		Method: http.MethodPost,
		Header: header,
		Body:   payload,
		Parse:  Parse,
	}, nil
}

// buildMessages renders neutral messages as Chat Completions messages.
// Tool results become "tool" role messages keyed by tool_call_id.
func buildMessages(messages []services.Message) []map[string]any {
	var out []map[string]any
	for _, msg := range messages {
		if msg.Role == "assistant" {
			m := map[string]any{"role": "assistant"}
			if msg.Text != "" {
				m["content"] = msg.Text
			}
			if len(msg.ToolCalls) > 0 {
				var calls []map[string]any
				for _, tc := range msg.ToolCalls {
					args, _ := json.Marshal(tc.Input)
					calls = append(calls, map[string]any{
						"id":   tc.ID,
						"type": "function",
						"function": map[string]any{
							"name":      tc.Name,
							"arguments": string(args),
						},
					})
				}
				m["tool_calls"] = calls
			}
			if m["content"] != nil || m["tool_calls"] != nil {
				out = append(out, m)
			}
			continue
		}

		for _, tc := range msg.ToolResults {
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": tc.ID,
				"content":      string(tc.Result),
			})
		}
		if msg.Text != "" {
			out = append(out, map[string]any{"role": "user", "content": msg.Text})
		}
	}
	return out
}

// Parse maps one Chat Completions stream chunk to canonical signals.
//
// The format has no block events: content and tool-call fragments are
// mapped onto a fixed index layout, the first fragment of a tool call
// (the one carrying id and name) opens its block, and the finish_reason
// marker stands in for block completion. Error envelopes may replace a
// chunk entirely, so every payload is sniffed for one first.
func Parse(ev llm.RawEvent) llm.StreamSignals {
	data := strings.TrimSpace(string(ev.Data))
	if data == "[DONE]" {
		return llm.StreamSignals{Done: true}
	}

	if errMsg := gjson.Get(data, "error.message"); errMsg.Exists() {
		return llm.StreamSignals{Err: fmt.Errorf("openai stream error: %s", errMsg.String())}
	}

	var signals llm.StreamSignals
	delta := gjson.Get(data, "choices.0.delta")

	if reasoning := delta.Get("reasoning_content"); reasoning.Exists() && reasoning.String() != "" {
		signals.Content = &llm.ContentSignal{
			BlockIndex: reasoningBlockIndex,
			Text:       reasoning.String(),
			Thinking:   true,
		}
	} else if content := delta.Get("content"); content.Exists() && content.String() != "" {
		signals.Content = &llm.ContentSignal{
			BlockIndex: contentBlockIndex,
			Text:       content.String(),
		}
	}

	// A delta may carry several tool_calls entries at once
	for _, call := range delta.Get("tool_calls").Array() {
		index := toolBlockOffset + int(call.Get("index").Int())
		args := call.Get("function.arguments").String()
		if id := call.Get("id").String(); id != "" {
			signals.BlockStarts = append(signals.BlockStarts, llm.BlockStartSignal{
				BlockIndex:   index,
				Kind:         llm.BlockKindToolCall,
				ToolCallID:   id,
				ToolCallName: call.Get("function.name").String(),
				InitialInput: args,
			})
		} else if args != "" {
			signals.ToolCallDeltas = append(signals.ToolCallDeltas, llm.ToolCallDeltaSignal{
				BlockIndex: index,
				Text:       args,
			})
		}
	}

	if reason := gjson.Get(data, "choices.0.finish_reason"); reason.Exists() && reason.String() != "" {
		signals.StopReason = reason.String()
		signals.StepDone = true
	}

	return signals
}
