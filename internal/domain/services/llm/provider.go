package llm

import (
	"net/http"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
)

// StreamRequest contains everything a provider needs to build one
// inference request: the conversation history rendered as neutral
// messages, the system prompt, the model, the enabled tools, and the
// reasoning settings. The engine never constructs backend-specific
// payload shapes itself.
type StreamRequest struct {
	Model           string
	System          string
	Messages        []Message
	Tools           []llm.ToolDefinition
	ThinkingEnabled bool
	ThinkingBudget  int
	MaxTokens       int
}

// Message is one conversation message in neutral form. Assistant
// messages carry the step's accumulated thinking/content/tool calls;
// user messages carry the round prompt or tool results.
type Message struct {
	Role        string
	Text        string
	Thinking    string
	Signature   string
	ToolCalls   []*llm.ToolCall
	ToolResults []*llm.ToolCall
}

// EndpointRequest is a fully built backend invocation: where to send
// the request, what to send, and the wire event parser that understands
// the response stream.
type EndpointRequest struct {
	URL    string
	Method string
	Header http.Header
	Body   []byte
	Parse  llm.ParseFunc
}

// Provider builds backend-specific requests. One implementation per
// LLM backend (Anthropic, OpenAI-compatible, ...).
type Provider interface {
	// Name returns the provider name (e.g., "anthropic", "openai")
	Name() string

	// SupportsModel returns true if the provider serves the given model
	SupportsModel(model string) bool

	// BuildRequest translates a neutral stream request into a concrete
	// endpoint invocation with the matching wire event parser
	BuildRequest(req *StreamRequest) (*EndpointRequest, error)
}
