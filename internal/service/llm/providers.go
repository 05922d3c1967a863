package llm

import (
	"context"
	"fmt"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
	"github.com/mruwnik/notes-critic-sub001/internal/engine"
)

// Streamer is implemented by providers that generate their own wire
// events instead of dialing an HTTP endpoint (the lorem mock).
type Streamer interface {
	OpenStream(ctx context.Context, req *services.EndpointRequest) (<-chan llm.RawEvent, error)
}

// ProviderSet routes models to registered providers and picks the
// right stream opener for each: providers that implement Streamer use
// their own, everything else goes through the shared SSE transport.
type ProviderSet struct {
	providers []services.Provider
	opener    engine.OpenStreamFunc
}

// NewProviderSet creates a provider set backed by the given SSE opener
func NewProviderSet(opener engine.OpenStreamFunc, providers ...services.Provider) *ProviderSet {
	return &ProviderSet{providers: providers, opener: opener}
}

// ForModel returns the provider serving the model and the stream
// opener to use with its requests
func (ps *ProviderSet) ForModel(model string) (services.Provider, engine.OpenStreamFunc, error) {
	for _, p := range ps.providers {
		if p.SupportsModel(model) {
			if streamer, ok := p.(Streamer); ok {
				return p, streamer.OpenStream, nil
			}
			return p, ps.opener, nil
		}
	}
	return nil, nil, fmt.Errorf("no provider serves model %q", model)
}

// Names returns the registered provider names
func (ps *ProviderSet) Names() []string {
	names := make([]string, 0, len(ps.providers))
	for _, p := range ps.providers {
		names = append(names, p.Name())
	}
	return names
}
