package llm

import "encoding/json"

// Canonical chunk type constants. Every backend stream is normalized
// into this vocabulary before any downstream consumer sees it.
const (
	ChunkTypeThinking       = "thinking"
	ChunkTypeContent        = "content"
	ChunkTypeSignature      = "signature"
	ChunkTypeToolCall       = "tool_call"
	ChunkTypeToolCallResult = "tool_call_result"
	ChunkTypeError          = "error"
	ChunkTypeDone           = "done"
)

// StreamChunk is one backend-agnostic signal emitted by the assembler.
//
// For thinking/content chunks, Text is the incremental delta while
// IsComplete is false; when IsComplete is true, Text carries the full
// accumulated block text instead. Consumers that render incrementally
// use the deltas; consumers that only want final text use the complete
// chunk.
//
// A tool_call chunk is emitted twice per call: once when the call is
// first seen (IsComplete false, ToolCall.Input nil) and again once its
// argument text has been fully parsed (IsComplete true).
type StreamChunk struct {
	Type       string `json:"type"`
	BlockIndex int    `json:"block_index"`
	IsComplete bool   `json:"is_complete,omitempty"`

	// Text for thinking/content chunks, signature text for signature chunks
	Text string `json:"text,omitempty"`

	// Tool call payload for tool_call chunks
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// Result payload for tool_call_result chunks
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`

	// Message for error chunks
	Message string `json:"message,omitempty"`

	// StopReason for done chunks, when the backend reported one
	StopReason string `json:"stop_reason,omitempty"`
}

// NewContentChunk creates a content or thinking delta chunk
func NewContentChunk(blockIndex int, text string, thinking bool) StreamChunk {
	chunkType := ChunkTypeContent
	if thinking {
		chunkType = ChunkTypeThinking
	}
	return StreamChunk{Type: chunkType, BlockIndex: blockIndex, Text: text}
}

// NewErrorChunk creates an error chunk naming the offending block
func NewErrorChunk(blockIndex int, message string) StreamChunk {
	return StreamChunk{Type: ChunkTypeError, BlockIndex: blockIndex, Message: message}
}
