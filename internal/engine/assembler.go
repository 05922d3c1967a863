package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
)

// blockState tracks one open block in the stream
type blockState struct {
	kind      string
	text      strings.Builder // content/thinking text
	args      strings.Builder // tool-call argument JSON fragments
	call      *llm.ToolCall
	completed bool
}

// Assembler turns canonical stream signals into fully-formed chunks.
//
// It buffers partial tool-call argument text per block index until the
// block completes, then parses it exactly once. Content and thinking
// deltas pass through immediately and are also accumulated, so a
// consumer can take either the incremental deltas or the single
// complete chunk per block.
//
// One Assembler instance serves one inference step; state does not
// carry across steps.
type Assembler struct {
	blocks        map[int]*blockState
	lastToolIndex int
	stopReason    string
}

// NewAssembler creates an assembler for a fresh stream
func NewAssembler() *Assembler {
	return &Assembler{
		blocks:        make(map[int]*blockState),
		lastToolIndex: -1,
	}
}

// Apply processes the signals parsed from one wire event and returns
// the chunks to emit, in order. Malformed tool-call payloads surface as
// error chunks naming the offending block index.
func (a *Assembler) Apply(signals llm.StreamSignals) []llm.StreamChunk {
	var chunks []llm.StreamChunk

	if signals.StopReason != "" {
		a.stopReason = signals.StopReason
	}

	for i := range signals.BlockStarts {
		chunks = append(chunks, a.openBlock(&signals.BlockStarts[i])...)
	}

	if c := signals.Content; c != nil {
		chunks = append(chunks, a.appendContent(c))
	}

	for i := range signals.ToolCallDeltas {
		a.appendToolDelta(&signals.ToolCallDeltas[i])
	}

	if s := signals.Signature; s != nil {
		chunks = append(chunks, llm.StreamChunk{
			Type:       llm.ChunkTypeSignature,
			BlockIndex: s.BlockIndex,
			Text:       s.Signature,
		})
	}

	if r := signals.ToolCallResult; r != nil {
		chunks = append(chunks, a.attachResult(r))
	}

	if idx := signals.BlockComplete; idx != nil {
		chunks = append(chunks, a.completeBlock(*idx)...)
	}

	if signals.Done || signals.StepDone {
		// Backends without explicit block-stop events (OpenAI-style)
		// rely on the finish marker to close whatever is still open.
		for _, idx := range a.openIndexes() {
			chunks = append(chunks, a.completeBlock(idx)...)
		}
		chunks = append(chunks, llm.StreamChunk{
			Type:       llm.ChunkTypeDone,
			StopReason: a.stopReason,
		})
	}

	return chunks
}

// openBlock opens a fresh buffer at the index, resetting any stale
// state from a reused index
func (a *Assembler) openBlock(bs *llm.BlockStartSignal) []llm.StreamChunk {
	state := &blockState{kind: bs.Kind}
	a.blocks[bs.BlockIndex] = state

	switch bs.Kind {
	case llm.BlockKindToolCall:
		state.call = &llm.ToolCall{
			ID:           bs.ToolCallID,
			Name:         bs.ToolCallName,
			BlockIndex:   bs.BlockIndex,
			IsServerCall: bs.IsServerCall,
		}
		state.args.WriteString(bs.InitialInput)
		a.lastToolIndex = bs.BlockIndex
		call := *state.call
		return []llm.StreamChunk{{
			Type:       llm.ChunkTypeToolCall,
			BlockIndex: bs.BlockIndex,
			ToolCall:   &call,
		}}
	case llm.BlockKindToolCallResult:
		return nil
	default:
		// Empty delta so consumers can render a placeholder for a
		// block that started without payload
		return []llm.StreamChunk{llm.NewContentChunk(bs.BlockIndex, "", bs.Kind == llm.BlockKindThinking)}
	}
}

func (a *Assembler) appendContent(c *llm.ContentSignal) llm.StreamChunk {
	state, ok := a.blocks[c.BlockIndex]
	if !ok {
		// Backends without block-start events open blocks implicitly
		// on the first delta
		kind := llm.BlockKindContent
		if c.Thinking {
			kind = llm.BlockKindThinking
		}
		state = &blockState{kind: kind}
		a.blocks[c.BlockIndex] = state
	}
	state.text.WriteString(c.Text)
	return llm.NewContentChunk(c.BlockIndex, c.Text, c.Thinking)
}

func (a *Assembler) appendToolDelta(d *llm.ToolCallDeltaSignal) {
	state, ok := a.blocks[d.BlockIndex]
	if !ok || state.kind != llm.BlockKindToolCall {
		state = &blockState{
			kind: llm.BlockKindToolCall,
			call: &llm.ToolCall{BlockIndex: d.BlockIndex},
		}
		a.blocks[d.BlockIndex] = state
		a.lastToolIndex = d.BlockIndex
	}
	state.args.WriteString(d.Text)
}

// attachResult resolves the target of a server-executed tool result.
// Results that name no known call attach to the most recently seen
// tool call, to tolerate minor backend event-ordering differences.
func (a *Assembler) attachResult(r *llm.ToolCallResultSignal) llm.StreamChunk {
	callID := r.ToolCallID
	if callID == "" {
		if state, ok := a.blocks[a.lastToolIndex]; ok && state.call != nil {
			callID = state.call.ID
		}
	}
	return llm.StreamChunk{
		Type:       llm.ChunkTypeToolCallResult,
		BlockIndex: r.BlockIndex,
		ToolCallID: callID,
		Result:     json.RawMessage(r.Result),
	}
}

func (a *Assembler) completeBlock(idx int) []llm.StreamChunk {
	state, ok := a.blocks[idx]
	if !ok || state.completed {
		return nil
	}
	state.completed = true

	switch state.kind {
	case llm.BlockKindToolCall:
		text := strings.TrimSpace(state.args.String())
		if text == "" {
			// Tools without arguments stream no input at all
			text = "{}"
		}
		var input map[string]any
		if err := json.Unmarshal([]byte(text), &input); err != nil {
			return []llm.StreamChunk{llm.NewErrorChunk(idx,
				fmt.Sprintf("tool call arguments at block %d are not valid JSON: %v", idx, err))}
		}
		state.call.Input = input
		state.call.IsComplete = true
		call := *state.call
		return []llm.StreamChunk{{
			Type:       llm.ChunkTypeToolCall,
			BlockIndex: idx,
			IsComplete: true,
			ToolCall:   &call,
		}}
	case llm.BlockKindToolCallResult:
		return nil
	default:
		return []llm.StreamChunk{{
			Type:       chunkTypeForKind(state.kind),
			BlockIndex: idx,
			IsComplete: true,
			Text:       state.text.String(),
		}}
	}
}

// openIndexes returns the still-open block indexes in ascending order
func (a *Assembler) openIndexes() []int {
	var open []int
	for idx, state := range a.blocks {
		if !state.completed {
			open = append(open, idx)
		}
	}
	sort.Ints(open)
	return open
}

func chunkTypeForKind(kind string) string {
	if kind == llm.BlockKindThinking {
		return llm.ChunkTypeThinking
	}
	return llm.ChunkTypeContent
}
