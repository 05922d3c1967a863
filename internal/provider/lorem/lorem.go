package lorem

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/tidwall/gjson"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
)

// Provider is a mock backend that streams lorem ipsum text without
// requiring an API key. It implements both the request-builder contract
// and the stream opener, generating its own wire events locally and
// parsing them back through the normal pipeline so the whole engine
// path is exercised.
type Provider struct {
	generator *loremgen.Lorem
}

// New creates a lorem provider
func New() *Provider {
	return &Provider{generator: loremgen.New()}
}

// Name returns "lorem"
func (p *Provider) Name() string { return "lorem" }

// SupportsModel returns true for "lorem-" models, e.g. "lorem-fast"
// and "lorem-slow"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// BuildRequest returns a placeholder endpoint with the lorem parser.
// The URL is never dialed; OpenStream generates the events instead.
func (p *Provider) BuildRequest(req *services.StreamRequest) (*services.EndpointRequest, error) {
	return &services.EndpointRequest{
		URL:    "mock://lorem/" + req.Model,
		Method: "POST",
		Parse:  Parse,
	}, nil
}

// OpenStream generates a synthetic word-by-word stream. The delay per
// word depends on the model suffix; "lorem-slow" is useful for testing
// cancellation mid-stream.
func (p *Provider) OpenStream(ctx context.Context, req *services.EndpointRequest) (<-chan llm.RawEvent, error) {
	delay := 20 * time.Millisecond
	if strings.HasSuffix(req.URL, "-slow") {
		delay = 300 * time.Millisecond
	}

	sentences := make([]string, 3)
	for i := range sentences {
		sentences[i] = p.generator.Sentence(5, 12)
	}
	text := strings.Join(sentences, " ")

	events := make(chan llm.RawEvent)
	go func() {
		defer close(events)

		emit := func(payload map[string]any) bool {
			data, _ := json.Marshal(payload)
			select {
			case events <- llm.RawEvent{Data: data}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(map[string]any{"type": "start", "index": 0}) {
			return
		}
		for _, word := range strings.Fields(text) {
			if !emit(map[string]any{"type": "text", "index": 0, "text": word + " "}) {
				return
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		emit(map[string]any{"type": "stop", "index": 0})
		emit(map[string]any{"type": "done", "stop_reason": "end_turn"})
	}()
	return events, nil
}

// Parse decodes the lorem wire format: start, text, stop, done
func Parse(ev llm.RawEvent) llm.StreamSignals {
	data := string(ev.Data)
	index := int(gjson.Get(data, "index").Int())

	switch gjson.Get(data, "type").String() {
	case "start":
		return llm.StreamSignals{BlockStarts: []llm.BlockStartSignal{{
			BlockIndex: index,
			Kind:       llm.BlockKindContent,
		}}}
	case "text":
		return llm.StreamSignals{Content: &llm.ContentSignal{
			BlockIndex: index,
			Text:       gjson.Get(data, "text").String(),
		}}
	case "stop":
		return llm.StreamSignals{BlockComplete: &index}
	case "done":
		return llm.StreamSignals{
			Done:       true,
			StopReason: gjson.Get(data, "stop_reason").String(),
		}
	}
	return llm.StreamSignals{}
}
