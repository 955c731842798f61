package completion

import (
	"context"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/lorem"

	chatSvc "parley/internal/domain/services/chat"
)

// LoremAdapter wraps the library's lorem provider behind the TextEngine
// interface. It generates placeholder text and is the default engine in
// development, where real API keys aren't available.
type LoremAdapter struct {
	provider llmprovider.Provider
}

// NewLoremAdapter creates a new lorem engine adapter
func NewLoremAdapter() *LoremAdapter {
	return &LoremAdapter{
		provider: lorem.NewProvider(),
	}
}

// Name returns the engine name
func (a *LoremAdapter) Name() string {
	return a.provider.Name().String()
}

// SupportsModel returns true if this engine supports the given model
func (a *LoremAdapter) SupportsModel(model string) bool {
	return a.provider.SupportsModel(model)
}

// GenerateResponse produces a complete response
func (a *LoremAdapter) GenerateResponse(ctx context.Context, req *chatSvc.GenerateRequest) (*chatSvc.GenerateResponse, error) {
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
func (a *LoremAdapter) StreamResponse(ctx context.Context, req *chatSvc.GenerateRequest) (<-chan chatSvc.StreamEvent, error) {
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
