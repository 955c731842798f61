package completion

import (
	"fmt"

	"parley/internal/config"
	"parley/internal/domain"
	chatSvc "parley/internal/domain/services/chat"
)

// EngineSet holds the configured text engines and picks one per request
type EngineSet struct {
	engines      []chatSvc.TextEngine
	defaultModel string
}

// NewEngineSet builds the engine set from configuration. The lorem engine is
// always registered; Anthropic joins it when an API key is configured.
func NewEngineSet(cfg *config.Config) (*EngineSet, error) {
	set := &EngineSet{
		defaultModel: cfg.DefaultModel,
	}

	set.engines = append(set.engines, NewLoremAdapter())

	if cfg.AnthropicAPIKey != "" {
		anthropicEngine, err := NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("create anthropic engine: %w", err)
		}
		set.engines = append(set.engines, anthropicEngine)
	}

	return set, nil
}

// DefaultModel returns the configured fallback model
func (s *EngineSet) DefaultModel() string {
	return s.defaultModel
}

// EngineFor returns the first engine that supports the given model
func (s *EngineSet) EngineFor(model string) (chatSvc.TextEngine, error) {
	for _, engine := range s.engines {
		if engine.SupportsModel(model) {
			return engine, nil
		}
	}
	return nil, &domain.ValidationError{
		Message: fmt.Sprintf("no engine supports model %q", model),
	}
}
