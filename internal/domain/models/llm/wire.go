package llm

// Block kind constants. A block is a contiguous span of one semantic
// kind within a backend stream, identified by its index.
const (
	BlockKindContent        = "content"
	BlockKindThinking       = "thinking"
	BlockKindToolCall       = "tool_call"
	BlockKindToolCallResult = "tool_call_result"
)

// RawEvent is one decoded event from a backend's wire stream before any
// normalization: the SSE event name (empty for backends that only use
// data lines) and the raw data payload.
type RawEvent struct {
	Name string
	Data []byte
}

// ContentSignal carries a text fragment from the stream.
// Thinking distinguishes reasoning text from reply text.
type ContentSignal struct {
	BlockIndex int
	Text       string
	Thinking   bool
}

// BlockStartSignal opens a block at an index. Emitted even when the
// block carries no payload yet so consumers can render a placeholder.
type BlockStartSignal struct {
	BlockIndex int
	Kind       string

	// Tool call metadata, set when Kind is tool_call. InitialInput
	// carries argument JSON delivered whole rather than as deltas.
	ToolCallID   string
	ToolCallName string
	IsServerCall bool
	InitialInput string
}

// ToolCallDeltaSignal is an argument-text fragment to append to the
// named index's tool-call buffer. The text is not valid JSON until the
// block completes.
type ToolCallDeltaSignal struct {
	BlockIndex int
	Text       string
}

// ToolCallResultSignal reports the result of a server-executed tool
// call. Such calls never reach the local dispatcher.
type ToolCallResultSignal struct {
	BlockIndex int
	ToolCallID string
	Result     []byte
}

// SignatureSignal carries an opaque backend token attached to reasoning.
// It must be echoed back verbatim on the next request.
type SignatureSignal struct {
	BlockIndex int
	Signature  string
}

// StreamSignals is the normalized output of a wire event parser for one
// raw event: zero or more of the canonical signals. Each backend parser
// maps its own event vocabulary onto this one struct; everything
// downstream of the parser is backend-agnostic.
//
// BlockStarts and ToolCallDeltas are slices because an OpenAI-style
// chunk may carry several tool_calls entries in a single delta.
//
// StepDone marks the reply finished for the current inference round;
// Done marks the whole exchange finished. Backends that only signal one
// of the two set both on the same event.
type StreamSignals struct {
	Content        *ContentSignal
	BlockStarts    []BlockStartSignal
	BlockComplete  *int
	ToolCallDeltas []ToolCallDeltaSignal
	ToolCallResult *ToolCallResultSignal
	Signature      *SignatureSignal

	StopReason string
	StepDone   bool
	Done       bool
	Err        error
}

// ParseFunc maps one raw backend event to canonical signals.
// Implementations must be pure with respect to stream state; all
// cross-event accumulation belongs to the assembler.
type ParseFunc func(ev RawEvent) StreamSignals
