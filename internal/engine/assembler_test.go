package engine

import (
	"strings"
	"testing"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
)

func intPtr(i int) *int { return &i }

func TestAssemblerContentDeltas(t *testing.T) {
	asm := NewAssembler()

	deltas := []string{"Hello", ", ", "world"}
	var collected []llm.StreamChunk

	collected = append(collected, asm.Apply(llm.StreamSignals{
		BlockStarts: []llm.BlockStartSignal{{BlockIndex: 0, Kind: llm.BlockKindContent}},
	})...)
	for _, d := range deltas {
		collected = append(collected, asm.Apply(llm.StreamSignals{
			Content: &llm.ContentSignal{BlockIndex: 0, Text: d},
		})...)
	}
	collected = append(collected, asm.Apply(llm.StreamSignals{BlockComplete: intPtr(0)})...)
	collected = append(collected, asm.Apply(llm.StreamSignals{Done: true, StopReason: "end_turn"})...)

	var deltaChunks, completeChunks, doneChunks int
	var fullText string
	var rebuilt strings.Builder
	for _, chunk := range collected {
		switch {
		case chunk.Type == llm.ChunkTypeContent && chunk.IsComplete:
			completeChunks++
			fullText = chunk.Text
		case chunk.Type == llm.ChunkTypeContent:
			deltaChunks++
			rebuilt.WriteString(chunk.Text)
		case chunk.Type == llm.ChunkTypeDone:
			doneChunks++
			if chunk.StopReason != "end_turn" {
				t.Errorf("stop reason = %q, want end_turn", chunk.StopReason)
			}
		}
	}

	// One delta chunk per delta plus the placeholder from block start
	if deltaChunks != len(deltas)+1 {
		t.Errorf("delta chunks = %d, want %d", deltaChunks, len(deltas)+1)
	}
	if completeChunks != 1 {
		t.Errorf("complete chunks = %d, want 1", completeChunks)
	}
	if doneChunks != 1 {
		t.Errorf("done chunks = %d, want 1", doneChunks)
	}
	if fullText != "Hello, world" {
		t.Errorf("full text = %q, want %q", fullText, "Hello, world")
	}
	if rebuilt.String() != "Hello, world" {
		t.Errorf("concatenated deltas = %q, want %q", rebuilt.String(), "Hello, world")
	}
}

func TestAssemblerToolCallFragments(t *testing.T) {
	asm := NewAssembler()

	chunks := asm.Apply(llm.StreamSignals{
		BlockStarts: []llm.BlockStartSignal{{
			BlockIndex:   1,
			Kind:         llm.BlockKindToolCall,
			ToolCallID:   "call_1",
			ToolCallName: "note_view",
		}},
	})
	if len(chunks) != 1 || chunks[0].Type != llm.ChunkTypeToolCall {
		t.Fatalf("expected initial tool_call chunk, got %+v", chunks)
	}
	if chunks[0].IsComplete {
		t.Error("tool call marked complete before arguments finished")
	}
	if chunks[0].ToolCall.Input != nil {
		t.Error("tool call input usable before block complete")
	}

	// Argument JSON arrives in fragments that are individually invalid
	for _, frag := range []string{`{"a":`, ` 1}`} {
		got := asm.Apply(llm.StreamSignals{
			ToolCallDeltas: []llm.ToolCallDeltaSignal{{BlockIndex: 1, Text: frag}},
		})
		if len(got) != 0 {
			t.Errorf("fragment %q emitted chunks %+v, want none", frag, got)
		}
	}

	chunks = asm.Apply(llm.StreamSignals{BlockComplete: intPtr(1)})
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk on block complete, got %d", len(chunks))
	}
	chunk := chunks[0]
	if chunk.Type != llm.ChunkTypeToolCall || !chunk.IsComplete {
		t.Fatalf("expected complete tool_call chunk, got %+v", chunk)
	}
	if got := chunk.ToolCall.Input["a"]; got != float64(1) {
		t.Errorf("parsed input a = %v, want 1", got)
	}
	if chunk.ToolCall.Name != "note_view" || chunk.ToolCall.ID != "call_1" {
		t.Errorf("tool call identity lost: %+v", chunk.ToolCall)
	}
}

func TestAssemblerMalformedToolJSON(t *testing.T) {
	asm := NewAssembler()

	asm.Apply(llm.StreamSignals{
		BlockStarts: []llm.BlockStartSignal{{
			BlockIndex: 2, Kind: llm.BlockKindToolCall, ToolCallID: "call_x", ToolCallName: "note_edit",
		}},
	})
	asm.Apply(llm.StreamSignals{
		ToolCallDeltas: []llm.ToolCallDeltaSignal{{BlockIndex: 2, Text: `{"path": "notes/a`},
	}})

	chunks := asm.Apply(llm.StreamSignals{BlockComplete: intPtr(2)})
	if len(chunks) != 1 || chunks[0].Type != llm.ChunkTypeError {
		t.Fatalf("expected error chunk, got %+v", chunks)
	}
	if chunks[0].BlockIndex != 2 {
		t.Errorf("error names block %d, want 2", chunks[0].BlockIndex)
	}
	if !strings.Contains(chunks[0].Message, "block 2") {
		t.Errorf("error message %q does not name the block", chunks[0].Message)
	}
}

func TestAssemblerEmptyToolArguments(t *testing.T) {
	asm := NewAssembler()

	asm.Apply(llm.StreamSignals{
		BlockStarts: []llm.BlockStartSignal{{
			BlockIndex: 0, Kind: llm.BlockKindToolCall, ToolCallID: "call_0", ToolCallName: "note_tree",
		}},
	})
	chunks := asm.Apply(llm.StreamSignals{BlockComplete: intPtr(0)})
	if len(chunks) != 1 || !chunks[0].IsComplete {
		t.Fatalf("expected complete tool_call, got %+v", chunks)
	}
	if chunks[0].ToolCall.Input == nil || len(chunks[0].ToolCall.Input) != 0 {
		t.Errorf("empty arguments should parse as empty object, got %v", chunks[0].ToolCall.Input)
	}
}

func TestAssemblerResultFallsBackToLastToolCall(t *testing.T) {
	asm := NewAssembler()

	asm.Apply(llm.StreamSignals{
		BlockStarts: []llm.BlockStartSignal{{
			BlockIndex: 0, Kind: llm.BlockKindToolCall,
			ToolCallID: "srv_1", ToolCallName: "web_search", IsServerCall: true,
		}},
	})

	chunks := asm.Apply(llm.StreamSignals{
		ToolCallResult: &llm.ToolCallResultSignal{BlockIndex: 1, Result: []byte(`{"hits":[]}`)},
	})
	if len(chunks) != 1 || chunks[0].Type != llm.ChunkTypeToolCallResult {
		t.Fatalf("expected tool_call_result chunk, got %+v", chunks)
	}
	if chunks[0].ToolCallID != "srv_1" {
		t.Errorf("result attached to %q, want srv_1", chunks[0].ToolCallID)
	}
}

func TestAssemblerImplicitBlockOpenAndFinishClose(t *testing.T) {
	// OpenAI-style stream: no block starts, no block stops, the finish
	// marker closes everything still open.
	asm := NewAssembler()

	var collected []llm.StreamChunk
	collected = append(collected, asm.Apply(llm.StreamSignals{
		Content: &llm.ContentSignal{BlockIndex: 0, Text: "hi"},
	})...)
	collected = append(collected, asm.Apply(llm.StreamSignals{
		BlockStarts: []llm.BlockStartSignal{{
			BlockIndex: 1, Kind: llm.BlockKindToolCall,
			ToolCallID: "call_1", ToolCallName: "note_search", InitialInput: `{"query":"x"}`,
		}},
	})...)
	collected = append(collected, asm.Apply(llm.StreamSignals{
		StepDone: true, StopReason: "tool_calls",
	})...)

	var sawContentComplete, sawToolComplete, sawDone bool
	for _, chunk := range collected {
		switch {
		case chunk.Type == llm.ChunkTypeContent && chunk.IsComplete:
			sawContentComplete = true
			if chunk.Text != "hi" {
				t.Errorf("content = %q, want hi", chunk.Text)
			}
		case chunk.Type == llm.ChunkTypeToolCall && chunk.IsComplete:
			sawToolComplete = true
			if chunk.ToolCall.Input["query"] != "x" {
				t.Errorf("tool input = %v", chunk.ToolCall.Input)
			}
		case chunk.Type == llm.ChunkTypeDone:
			sawDone = true
		}
	}
	if !sawContentComplete || !sawToolComplete || !sawDone {
		t.Errorf("missing chunks: content=%v tool=%v done=%v", sawContentComplete, sawToolComplete, sawDone)
	}
}

func TestAssemblerReusedIndexResets(t *testing.T) {
	asm := NewAssembler()

	asm.Apply(llm.StreamSignals{
		BlockStarts: []llm.BlockStartSignal{{BlockIndex: 0, Kind: llm.BlockKindContent}},
	})
	asm.Apply(llm.StreamSignals{Content: &llm.ContentSignal{BlockIndex: 0, Text: "stale"}})
	asm.Apply(llm.StreamSignals{BlockComplete: intPtr(0)})

	// Same index reused for a new block must not inherit old text
	asm.Apply(llm.StreamSignals{
		BlockStarts: []llm.BlockStartSignal{{BlockIndex: 0, Kind: llm.BlockKindContent}},
	})
	asm.Apply(llm.StreamSignals{Content: &llm.ContentSignal{BlockIndex: 0, Text: "fresh"}})
	chunks := asm.Apply(llm.StreamSignals{BlockComplete: intPtr(0)})

	if len(chunks) != 1 || chunks[0].Text != "fresh" {
		t.Errorf("reused index kept stale text: %+v", chunks)
	}
}
