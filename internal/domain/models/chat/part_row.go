package chat

import (
	"encoding/json"
	"time"
)

// PartRow is the flat relational representation of one Part.
//
// The union is encoded arena-style: every variant gets its own disjoint set
// of variant-prefixed nullable columns, and a row's non-null column set is
// fully determined by Type (and, for tool calls, ToolState). The database
// mirrors this with conditional CHECK constraints; the codec is the single
// place the conversion lives so the trade-off never leaks into business
// logic.
type PartRow struct {
	ID        string    `db:"id"`
	MessageID string    `db:"message_id"`
	Type      string    `db:"type"`
	Order     int       `db:"ord"`
	CreatedAt time.Time `db:"created_at"`

	// text
	TextText *string `db:"text_text"`

	// reasoning
	ReasoningText             *string                `db:"reasoning_text"`
	ReasoningProviderMetadata map[string]interface{} `db:"reasoning_provider_metadata"` // JSONB

	// tool-call
	ToolCallID    *string         `db:"tool_call_id"`
	ToolState     *string         `db:"tool_state"`
	ToolInput     json.RawMessage `db:"tool_input"`  // JSONB, nil becomes NULL
	ToolOutput    json.RawMessage `db:"tool_output"` // JSONB, nil becomes NULL
	ToolErrorText *string         `db:"tool_error_text"`

	// status-data
	StatusID     *string                `db:"status_id"`
	StatusFields map[string]interface{} `db:"status_fields"` // JSONB
}

// partColumn names one variant-prefixed column and how to test its presence
// on a row.
type partColumn struct {
	name    string
	present func(*PartRow) bool
}

// requiredColumns is the data-driven variant -> required column table. Decode
// consults it before dispatching so the "required-for-type column is null"
// check stays mechanical; step-start has no payload and tool-call adds
// per-state requirements on top (see decodeToolCall).
var requiredColumns = map[string][]partColumn{
	PartTypeText: {
		{"text_text", func(r *PartRow) bool { return r.TextText != nil }},
	},
	PartTypeReasoning: {
		{"reasoning_text", func(r *PartRow) bool { return r.ReasoningText != nil }},
	},
	PartTypeStepStart: {},
	PartTypeStatusData: {
		{"status_id", func(r *PartRow) bool { return r.StatusID != nil }},
	},
	PartTypeToolCall: {
		{"tool_call_id", func(r *PartRow) bool { return r.ToolCallID != nil }},
		{"tool_state", func(r *PartRow) bool { return r.ToolState != nil }},
	},
}
