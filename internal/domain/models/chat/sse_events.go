package chat

import (
	"encoding/json"
	"fmt"
)

// SSE event type constants for assistant message streaming
const (
	SSEEventMessageStart    = "message_start"    // Assistant message streaming has begun
	SSEEventPartDelta       = "part_delta"       // Incremental part content
	SSEEventPartCatchup     = "part_catchup"     // Replaying a completed part (reconnection)
	SSEEventMessageComplete = "message_complete" // Message finished successfully
	SSEEventMessageError    = "message_error"    // Message encountered error
)

// MessageStartEvent signals that streaming has begun for a message
type MessageStartEvent struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	Model     string `json:"model"`
}

// PartDeltaEvent contains incremental content for the part at PartIndex
type PartDeltaEvent struct {
	PartIndex      int     `json:"part_index"`
	PartType       *string `json:"part_type,omitempty"`        // set on the first delta of a part
	TextDelta      *string `json:"text_delta,omitempty"`       // incremental text/reasoning content
	InputJSONDelta *string `json:"input_json_delta,omitempty"` // incremental tool input JSON
	ToolCallID     *string `json:"tool_call_id,omitempty"`     // set when a tool call starts
}

// PartCatchupEvent replays a completed part in wire form (for reconnection)
type PartCatchupEvent struct {
	PartIndex int             `json:"part_index"`
	Part      json.RawMessage `json:"part"`
}

// MessageCompleteEvent signals that the message has finished successfully
type MessageCompleteEvent struct {
	MessageID    string `json:"message_id"`
	StopReason   string `json:"stop_reason"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// MessageErrorEvent signals that streaming failed
type MessageErrorEvent struct {
	MessageID   string `json:"message_id"`
	Error       string `json:"error"`
	IsCancelled bool   `json:"is_cancelled,omitempty"` // true when the user interrupted the stream
}

// FormatSSE formats an SSE event for transmission:
//
//	event: event_name
//	data: {"field": "value"}
func FormatSSE(eventType string, data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal SSE event data: %w", err)
	}

	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(jsonData)), nil
}

// NewMessageStartEvent creates a message_start SSE event
func NewMessageStartEvent(messageID, chatID, model string) (string, error) {
	return FormatSSE(SSEEventMessageStart, MessageStartEvent{
		MessageID: messageID,
		ChatID:    chatID,
		Model:     model,
	})
}

// NewPartDeltaEvent creates a part_delta SSE event
func NewPartDeltaEvent(delta PartDeltaEvent) (string, error) {
	return FormatSSE(SSEEventPartDelta, delta)
}

// NewPartCatchupEvent creates a part_catchup SSE event carrying the full
// accumulated part state
func NewPartCatchupEvent(partIndex int, part Part) (string, error) {
	wire, err := MarshalPart(part)
	if err != nil {
		return "", err
	}
	return FormatSSE(SSEEventPartCatchup, PartCatchupEvent{
		PartIndex: partIndex,
		Part:      wire,
	})
}

// NewMessageCompleteEvent creates a message_complete SSE event
func NewMessageCompleteEvent(messageID, stopReason string, inputTokens, outputTokens int) (string, error) {
	return FormatSSE(SSEEventMessageComplete, MessageCompleteEvent{
		MessageID:    messageID,
		StopReason:   stopReason,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	})
}

// NewMessageErrorEvent creates a message_error SSE event
func NewMessageErrorEvent(messageID, errMsg string, cancelled bool) (string, error) {
	return FormatSSE(SSEEventMessageError, MessageErrorEvent{
		MessageID:   messageID,
		Error:       errMsg,
		IsCancelled: cancelled,
	})
}
