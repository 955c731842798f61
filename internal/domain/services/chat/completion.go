package chat

import (
	"context"

	"parley/internal/domain/models/chat"
)

// TextEngine is the boundary to a text generation backend. Adapters wrap
// concrete engines (lorem for development, Anthropic for production) behind
// this interface so the completion pipeline never sees engine-specific types.
type TextEngine interface {
	// Name returns the engine name (e.g., "anthropic", "lorem")
	Name() string

	// SupportsModel returns true if the engine supports the given model
	SupportsModel(model string) bool

	// GenerateResponse produces a complete response in one call
	GenerateResponse(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// StreamResponse produces a streaming response. The returned channel is
	// closed by the engine when the stream ends; a Metadata event precedes
	// normal closure.
	StreamResponse(ctx context.Context, req *GenerateRequest) (<-chan StreamEvent, error)
}

// GenerateRequest carries the conversation history for a completion
type GenerateRequest struct {
	// Messages is the conversation so far, in order
	Messages []chat.Message

	// Model is the model identifier
	Model string

	// MaxTokens caps the response length (0 means engine default)
	MaxTokens int
}

// GenerateResponse is a complete (non-streaming) engine response
type GenerateResponse struct {
	Parts        []chat.Part
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// StreamEvent is one event from a streaming engine.
// Exactly one of Delta, Metadata, Error is set.
type StreamEvent struct {
	Delta    *PartDelta
	Metadata *StreamMetadata
	Error    error
}

// PartDelta is an incremental update to the part at PartIndex.
// Deltas are ephemeral: they are accumulated into parts in memory and only
// whole message snapshots are persisted.
type PartDelta struct {
	// PartIndex identifies which part this delta belongs to (0-indexed)
	PartIndex int

	// PartType is set on the first delta for a part (signals a part start)
	// Values: "text", "reasoning", "tool-call"
	PartType *string

	// DeltaType indicates what kind of delta this is
	// Values: "text_delta", "thinking_delta", "tool_call_start", "input_json_delta"
	DeltaType string

	// TextDelta contains incremental text (text or reasoning parts)
	TextDelta *string

	// InputJSONDelta contains incremental JSON for tool input
	InputJSONDelta *string

	// ToolCallID identifies the tool call (set on tool_call_start)
	ToolCallID *string

	// ToolCallName is the tool name (set on tool_call_start)
	ToolCallName *string
}

// StreamMetadata is the final event of a successful stream
type StreamMetadata struct {
	Model            string
	InputTokens      int
	OutputTokens     int
	StopReason       string
	ResponseMetadata map[string]interface{}
}

// CompletionService starts assistant message generation
type CompletionService interface {
	// StartCompletion creates an assistant message in the chat and begins
	// streaming into it. The response carries the created message (initially
	// empty) and the URL where its stream can be consumed.
	StartCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is the DTO for starting a completion
type CompletionRequest struct {
	ChatID string `json:"-"` // set by handler from the URL path
	Model  string `json:"model,omitempty"`
}

// CompletionResponse is the DTO returned by StartCompletion
type CompletionResponse struct {
	Message   *chat.Message `json:"message"`
	StreamURL string        `json:"stream_url"`
}
