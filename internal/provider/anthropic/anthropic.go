package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	defaultMaxTok  = 8192
)

// Provider builds Anthropic Messages API requests and supplies the
// matching wire event parser
type Provider struct {
	apiKey  string
	baseURL string
}

// New creates an Anthropic provider. baseURL may be empty to use the
// public API endpoint.
func New(apiKey, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name returns "anthropic"
func (p *Provider) Name() string { return "anthropic" }

// SupportsModel returns true for claude model identifiers
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// BuildRequest translates a neutral stream request into a Messages API
// invocation
func (p *Provider) BuildRequest(req *services.StreamRequest) (*services.EndpointRequest, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTok
	}

	body := map[string]any{
		"model":      req.Model,
		"max_tokens": maxTokens,
		"stream":     true,
		"messages":   buildMessages(req.Messages),
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, map[string]any{
				"name":         tool.Name,
				"description":  tool.Description,
				"input_schema": tool.InputSchema,
			})
		}
		body["tools"] = tools
	}
	if req.ThinkingEnabled {
		budget := req.ThinkingBudget
		if budget == 0 {
			budget = 4096
		}
		body["thinking"] = map[string]any{
			"type":          "enabled",
			"budget_tokens": budget,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Api-Key", p.apiKey)
	header.Set("Anthropic-Version", apiVersion)

	return &services.EndpointRequest{
		URL:    p.baseURL + "/v1/messages",
		Method: http.MethodPost,
		Header: header,
		Body:   payload,
		Parse:  Parse,
	}, nil
}

// buildMessages renders neutral messages as Messages API content
// blocks. Thinking blocks echo their signature verbatim; tool results
// pair with the previous assistant message's tool_use blocks.
func buildMessages(messages []services.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		var blocks []map[string]any

		if msg.Role == "assistant" {
			if msg.Thinking != "" {
				block := map[string]any{"type": "thinking", "thinking": msg.Thinking}
				if msg.Signature != "" {
					block["signature"] = msg.Signature
				}
				blocks = append(blocks, block)
			}
			if msg.Text != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": msg.Text})
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Input
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": input,
				})
			}
		} else {
			for _, tc := range msg.ToolResults {
				block := map[string]any{
					"type":        "tool_result",
					"tool_use_id": tc.ID,
					"content":     string(tc.Result),
				}
				if tc.ResultIsError {
					block["is_error"] = true
				}
				blocks = append(blocks, block)
			}
			if msg.Text != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": msg.Text})
			}
		}

		if len(blocks) == 0 {
			continue
		}
		out = append(out, map[string]any{"role": msg.Role, "content": blocks})
	}
	return out
}

// Parse maps one Messages API stream event to canonical signals.
//
// Event vocabulary: message_start, content_block_start,
// content_block_delta (text_delta / thinking_delta / input_json_delta /
// signature_delta), content_block_stop, message_delta (carries the stop
// reason), message_stop, ping, error. Errors may also arrive nested in
// an otherwise normal-looking event, so every event is sniffed for an
// error payload first.
func Parse(ev llm.RawEvent) llm.StreamSignals {
	data := string(ev.Data)
	eventType := ev.Name
	if eventType == "" {
		eventType = gjson.Get(data, "type").String()
	}

	if errMsg := gjson.Get(data, "error.message"); errMsg.Exists() {
		return llm.StreamSignals{Err: fmt.Errorf("anthropic stream error: %s", errMsg.String())}
	}

	switch eventType {
	case "content_block_start":
		return parseBlockStart(data)

	case "content_block_delta":
		index := int(gjson.Get(data, "index").Int())
		switch gjson.Get(data, "delta.type").String() {
		case "text_delta":
			return llm.StreamSignals{Content: &llm.ContentSignal{
				BlockIndex: index,
				Text:       gjson.Get(data, "delta.text").String(),
			}}
		case "thinking_delta":
			return llm.StreamSignals{Content: &llm.ContentSignal{
				BlockIndex: index,
				Text:       gjson.Get(data, "delta.thinking").String(),
				Thinking:   true,
			}}
		case "input_json_delta":
			return llm.StreamSignals{ToolCallDeltas: []llm.ToolCallDeltaSignal{{
				BlockIndex: index,
				Text:       gjson.Get(data, "delta.partial_json").String(),
			}}}
		case "signature_delta":
			return llm.StreamSignals{Signature: &llm.SignatureSignal{
				BlockIndex: index,
				Signature:  gjson.Get(data, "delta.signature").String(),
			}}
		}
		return llm.StreamSignals{}

	case "content_block_stop":
		index := int(gjson.Get(data, "index").Int())
		return llm.StreamSignals{BlockComplete: &index}

	case "message_delta":
		// Reply finished for this step; the stream itself ends at
		// message_stop
		return llm.StreamSignals{
			StopReason: gjson.Get(data, "delta.stop_reason").String(),
			StepDone:   false,
		}

	case "message_stop":
		return llm.StreamSignals{Done: true}

	case "error":
		msg := gjson.Get(data, "error.message").String()
		if msg == "" {
			msg = data
		}
		return llm.StreamSignals{Err: fmt.Errorf("anthropic stream error: %s", msg)}
	}

	// message_start, ping and unknown events carry nothing we need
	return llm.StreamSignals{}
}

func parseBlockStart(data string) llm.StreamSignals {
	index := int(gjson.Get(data, "index").Int())
	blockType := gjson.Get(data, "content_block.type").String()

	switch blockType {
	case "text":
		return llm.StreamSignals{BlockStarts: []llm.BlockStartSignal{{
			BlockIndex: index,
			Kind:       llm.BlockKindContent,
		}}}
	case "thinking", "redacted_thinking":
		return llm.StreamSignals{BlockStarts: []llm.BlockStartSignal{{
			BlockIndex: index,
			Kind:       llm.BlockKindThinking,
		}}}
	case "tool_use", "server_tool_use":
		return llm.StreamSignals{BlockStarts: []llm.BlockStartSignal{{
			BlockIndex:   index,
			Kind:         llm.BlockKindToolCall,
			ToolCallID:   gjson.Get(data, "content_block.id").String(),
			ToolCallName: gjson.Get(data, "content_block.name").String(),
			IsServerCall: blockType == "server_tool_use",
		}}}
	case "web_search_tool_result":
		// Server-executed search results arrive as their own block
		// with the payload embedded in the start event
		return llm.StreamSignals{
			BlockStarts: []llm.BlockStartSignal{{
				BlockIndex: index,
				Kind:       llm.BlockKindToolCallResult,
			}},
			ToolCallResult: &llm.ToolCallResultSignal{
				BlockIndex: index,
				ToolCallID: gjson.Get(data, "content_block.tool_use_id").String(),
				Result:     []byte(gjson.Get(data, "content_block.content").Raw),
			},
		}
	}
	return llm.StreamSignals{BlockStarts: []llm.BlockStartSignal{{
		BlockIndex: index,
		Kind:       llm.BlockKindContent,
	}}}
}
