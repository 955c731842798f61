package completion

import (
	"context"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/anthropic"

	chatSvc "parley/internal/domain/services/chat"
)

// AnthropicAdapter wraps the library's Anthropic provider behind the
// TextEngine interface.
type AnthropicAdapter struct {
	provider llmprovider.Provider
}

// NewAnthropicAdapter creates a new Anthropic engine adapter
func NewAnthropicAdapter(apiKey string) (*AnthropicAdapter, error) {
	provider, err := anthropic.NewProvider(apiKey)
	if err != nil {
		return nil, err
	}

	return &AnthropicAdapter{
		provider: provider,
	}, nil
}

// Name returns the engine name
func (a *AnthropicAdapter) Name() string {
	return a.provider.Name().String()
}

// SupportsModel returns true if this engine supports the given model
func (a *AnthropicAdapter) SupportsModel(model string) bool {
	return a.provider.SupportsModel(model)
}

// GenerateResponse produces a complete response
func (a *AnthropicAdapter) GenerateResponse(ctx context.Context, req *chatSvc.GenerateRequest) (*chatSvc.GenerateResponse, error) {
	engineReq, err := convertToEngineRequest(req)
	if err != nil {
		return nil, err
	}

	engineResp, err := a.provider.GenerateResponse(ctx, engineReq)
	if err != nil {
		return nil, err
	}

	return convertFromEngineResponse(engineResp)
}

// StreamResponse produces a streaming response
func (a *AnthropicAdapter) StreamResponse(ctx context.Context, req *chatSvc.GenerateRequest) (<-chan chatSvc.StreamEvent, error) {
	engineReq, err := convertToEngineRequest(req)
	if err != nil {
		return nil, err
	}

	engineEventCh, err := a.provider.StreamResponse(ctx, engineReq)
	if err != nil {
		return nil, err
	}

	eventCh := make(chan chatSvc.StreamEvent)
	go func() {
		defer close(eventCh)
		for engineEvent := range engineEventCh {
			eventCh <- convertFromEngineEvent(engineEvent)
		}
	}()

	return eventCh, nil
}
