package chat

import (
	"encoding/json"
)

// Part type constants
const (
	PartTypeText       = "text"
	PartTypeReasoning  = "reasoning"
	PartTypeStepStart  = "step-start"
	PartTypeStatusData = "status-data"
	PartTypeToolCall   = "tool-call"
)

// Part is one typed fragment of a message's content.
//
// The set of implementations is closed: TextPart, ReasoningPart,
// StepStartPart, StatusDataPart and ToolCallPart. The unexported marker
// method keeps the union sealed so the codec's type switches stay exhaustive;
// adding a variant forces an explicit codec update rather than silently
// losing data.
type Part interface {
	// PartType returns the type discriminant ("text", "tool-call", ...).
	PartType() string

	isPart()
}

// TextPart is plain assistant/user text.
type TextPart struct {
	Text string `json:"text"`
}

// ReasoningPart is a model reasoning trace. ProviderMetadata carries
// provider-specific extras (signatures, redaction markers) opaquely.
type ReasoningPart struct {
	Text             string                 `json:"text"`
	ProviderMetadata map[string]interface{} `json:"providerMetadata,omitempty"`
}

// StepStartPart marks a step boundary inside an assistant turn. No payload.
type StepStartPart struct{}

// StatusDataPart is a progressively-filled status payload (e.g. a multi-stage
// async lookup). Fields may be absent on an early upsert and filled in by a
// later re-upsert of the same message; values inside the map may be nil.
type StatusDataPart struct {
	StatusID string                 `json:"statusId"`
	Fields   map[string]interface{} `json:"fields"`
}

// ToolCallPart is an invocation of an external capability, progressing
// through the ToolState lifecycle. Input/Output hold raw JSON as produced by
// the engine; which of them must be present depends on State (see
// tool_call.go).
type ToolCallPart struct {
	ToolCallID string          `json:"toolCallId"`
	State      ToolState       `json:"state"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

func (*TextPart) PartType() string       { return PartTypeText }
func (*ReasoningPart) PartType() string  { return PartTypeReasoning }
func (*StepStartPart) PartType() string  { return PartTypeStepStart }
func (*StatusDataPart) PartType() string { return PartTypeStatusData }
func (*ToolCallPart) PartType() string   { return PartTypeToolCall }

func (*TextPart) isPart()       {}
func (*ReasoningPart) isPart()  {}
func (*StepStartPart) isPart()  {}
func (*StatusDataPart) isPart() {}
func (*ToolCallPart) isPart()   {}
