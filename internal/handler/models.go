package handler

import (
	"log/slog"
	"net/http"

	"github.com/mruwnik/notes-critic-sub001/internal/capabilities"
	"github.com/mruwnik/notes-critic-sub001/internal/httputil"
)

// ModelsHandler serves the model capability registry
type ModelsHandler struct {
	registry  *capabilities.Registry
	providers []string
	logger    *slog.Logger
}

// NewModelsHandler creates a models handler exposing the providers
// that are actually configured (API key present or key-less mock)
func NewModelsHandler(registry *capabilities.Registry, providers []string, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{
		registry:  registry,
		providers: providers,
		logger:    logger,
	}
}

// ProviderResponse is one provider with its models
type ProviderResponse struct {
	ID     string          `json:"id"`
	Models []ModelResponse `json:"models"`
}

// ModelResponse is one model's capabilities
type ModelResponse struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	Description      string `json:"description,omitempty"`
	ContextWindow    int    `json:"context_window"`
	MaxOutput        int    `json:"max_output"`
	SupportsTools    bool   `json:"supports_tools"`
	SupportsThinking bool   `json:"supports_thinking"`
	ToolCallQuality  string `json:"tool_call_quality,omitempty"`
}

// GetCapabilities returns model capabilities for configured providers
// GET /api/models/capabilities
func (h *ModelsHandler) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	providers := make([]ProviderResponse, 0, len(h.providers))

	for _, name := range h.providers {
		models, err := h.registry.ListProviderModels(name)
		if err != nil {
			h.logger.Warn("no capability data for provider", "provider", name, "error", err)
			continue
		}

		resp := ProviderResponse{ID: name, Models: make([]ModelResponse, 0, len(models))}
		for _, m := range models {
			resp.Models = append(resp.Models, ModelResponse{
				ID:               m.ID,
				DisplayName:      m.DisplayName,
				Description:      m.Description,
				ContextWindow:    m.ContextWindow,
				MaxOutput:        m.MaxOutput,
				SupportsTools:    m.SupportsTools,
				SupportsThinking: m.SupportsThinking,
				ToolCallQuality:  string(m.ToolCallQuality),
			})
		}
		providers = append(providers, resp)
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"providers": providers,
	})
}
