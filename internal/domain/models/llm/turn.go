package llm

import (
	"encoding/json"
	"time"
)

// Turn status constants
const (
	TurnStatusPending   = "pending"
	TurnStatusStreaming = "streaming"
	TurnStatusComplete  = "complete"
	TurnStatusCancelled = "cancelled"
	TurnStatusError     = "error"
)

// Round input kinds. Every round the user initiates is one of these.
const (
	InputKindChatMessage     = "chat_message"
	InputKindFileChange      = "file_change"
	InputKindFeedbackRequest = "feedback_request"
)

// AttachedFile is a file the user attached to a round input.
// Data is base64-encoded file content.
type AttachedFile struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      string `json:"data,omitempty"`
}

// RoundInput is the user-side half of a ConversationTurn.
// Kind selects the variant; Prompt always carries the rendered text that
// is actually sent to the model.
//
// Variants:
//   - chat_message: free-form message typed by the user
//   - file_change: a document changed on disk; Path and Diff describe it
//   - feedback_request: the user explicitly asked for feedback on a document
type RoundInput struct {
	Kind   string         `json:"kind"`
	Prompt string         `json:"prompt"`
	Path   string         `json:"path,omitempty"`
	Diff   string         `json:"diff,omitempty"`
	Files  []AttachedFile `json:"files,omitempty"`
}

// ToolCall is one tool invocation requested by the model within a step.
//
// Input is two-phase: while argument JSON is still arriving as text
// fragments the assembler buffers it internally and Input stays nil;
// Input is set exactly once, when the block completes and the buffered
// text parses. IsComplete guards execution - a tool call must never be
// dispatched before its arguments are fully parsed.
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	BlockIndex   int            `json:"block_index"`
	Input        map[string]any `json:"input,omitempty"`
	IsComplete   bool           `json:"is_complete"`
	IsServerCall bool           `json:"is_server_call,omitempty"`

	// Result is absent until execution completes, then set at most once.
	// Failures are recorded here too (ResultIsError distinguishes them)
	// so the model can see and react to a failed call.
	Result        json.RawMessage `json:"result,omitempty"`
	ResultIsError bool            `json:"result_is_error,omitempty"`
}

// TurnStep is one round of model inference within a turn.
// Thinking, Content and Signature accumulate while the step streams.
// ToolCalls is keyed by the backend-issued call ID; BlockIndex on each
// call preserves the stream order for request building.
type TurnStep struct {
	Thinking  string               `json:"thinking,omitempty"`
	Content   string               `json:"content,omitempty"`
	Signature string               `json:"signature,omitempty"`
	ToolCalls map[string]*ToolCall `json:"tool_calls,omitempty"`
}

// NewTurnStep creates an empty step ready to stream into
func NewTurnStep() *TurnStep {
	return &TurnStep{ToolCalls: make(map[string]*ToolCall)}
}

// IsEmpty reports whether the step accumulated nothing at all.
// Empty trailing steps are discarded on cancellation instead of being
// left as visible blank entries.
func (s *TurnStep) IsEmpty() bool {
	return s.Thinking == "" && s.Content == "" && len(s.ToolCalls) == 0
}

// PendingToolCalls returns the step's complete, locally-executable tool
// calls that have no result yet, ordered by block index.
func (s *TurnStep) PendingToolCalls() []*ToolCall {
	var pending []*ToolCall
	for _, tc := range s.ToolCalls {
		if tc.IsComplete && !tc.IsServerCall && tc.Result == nil {
			pending = append(pending, tc)
		}
	}
	sortToolCalls(pending)
	return pending
}

// OrderedToolCalls returns all tool calls ordered by block index
func (s *TurnStep) OrderedToolCalls() []*ToolCall {
	calls := make([]*ToolCall, 0, len(s.ToolCalls))
	for _, tc := range s.ToolCalls {
		calls = append(calls, tc)
	}
	sortToolCalls(calls)
	return calls
}

func sortToolCalls(calls []*ToolCall) {
	for i := 1; i < len(calls); i++ {
		for j := i; j > 0 && calls[j-1].BlockIndex > calls[j].BlockIndex; j-- {
			calls[j-1], calls[j] = calls[j], calls[j-1]
		}
	}
}

// ConversationTurn is one user-initiated exchange: the round input plus
// the ordered steps the model produced in response.
//
// Steps is append-only while the turn streams; while Status is
// "streaming" the trailing step is the single active one and all earlier
// steps are frozen. Once the turn reaches a terminal status it is never
// mutated again - rerunning creates a new turn with a new ID.
type ConversationTurn struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Input          RoundInput  `json:"input"`
	Steps          []*TurnStep `json:"steps"`
	Status         string      `json:"status"`
	Error          *string     `json:"error,omitempty"`
	Model          string      `json:"model,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// IsComplete reports whether the turn reached a terminal status
// (natural completion, error or cancellation)
func (t *ConversationTurn) IsComplete() bool {
	switch t.Status {
	case TurnStatusComplete, TurnStatusCancelled, TurnStatusError:
		return true
	}
	return false
}

// Clone returns a deep copy of the turn. Consumers outside the
// streaming goroutine only ever see clones, never the live turn.
func (t *ConversationTurn) Clone() *ConversationTurn {
	cp := *t
	if t.Error != nil {
		e := *t.Error
		cp.Error = &e
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	cp.Steps = make([]*TurnStep, len(t.Steps))
	for i, step := range t.Steps {
		s := *step
		s.ToolCalls = make(map[string]*ToolCall, len(step.ToolCalls))
		for id, tc := range step.ToolCalls {
			c := *tc
			if tc.Input != nil {
				c.Input = make(map[string]any, len(tc.Input))
				for k, v := range tc.Input {
					c.Input[k] = v
				}
			}
			if tc.Result != nil {
				c.Result = append(json.RawMessage(nil), tc.Result...)
			}
			s.ToolCalls[id] = &c
		}
		cp.Steps[i] = &s
	}
	return &cp
}

// ActiveStep returns the trailing step being streamed into, or nil if
// the turn has no steps or is already complete
func (t *ConversationTurn) ActiveStep() *TurnStep {
	if t.IsComplete() || len(t.Steps) == 0 {
		return nil
	}
	return t.Steps[len(t.Steps)-1]
}
