package chat

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"parley/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		part Part
	}{
		{
			name: "text",
			part: &TextPart{Text: "hello world"},
		},
		{
			name: "empty text is still a text part",
			part: &TextPart{Text: ""},
		},
		{
			name: "reasoning without metadata",
			part: &ReasoningPart{Text: "thinking it over"},
		},
		{
			name: "reasoning with provider metadata",
			part: &ReasoningPart{
				Text:             "signed thought",
				ProviderMetadata: map[string]interface{}{"signature": "abc123"},
			},
		},
		{
			name: "step-start",
			part: &StepStartPart{},
		},
		{
			name: "status-data with fields",
			part: &StatusDataPart{
				StatusID: "lookup-42",
				Fields:   map[string]interface{}{"stage": "fetching", "attempt": float64(2)},
			},
		},
		{
			name: "status-data without fields yet",
			part: &StatusDataPart{StatusID: "lookup-43"},
		},
		{
			name: "tool call input-streaming without input",
			part: &ToolCallPart{ToolCallID: "tc1", State: ToolStateInputStreaming},
		},
		{
			name: "tool call input-streaming with partial input",
			part: &ToolCallPart{
				ToolCallID: "tc1",
				State:      ToolStateInputStreaming,
				Input:      json.RawMessage(`{"city":"To`),
			},
		},
		{
			name: "tool call input-available",
			part: &ToolCallPart{
				ToolCallID: "tc2",
				State:      ToolStateInputAvailable,
				Input:      json.RawMessage(`{"city":"Tokyo"}`),
			},
		},
		{
			name: "tool call output-available",
			part: &ToolCallPart{
				ToolCallID: "tc3",
				State:      ToolStateOutputAvailable,
				Input:      json.RawMessage(`{"city":"Tokyo"}`),
				Output:     json.RawMessage(`{"temperature":18}`),
			},
		},
		{
			name: "tool call output-error",
			part: &ToolCallPart{
				ToolCallID: "tc4",
				State:      ToolStateOutputError,
				Input:      json.RawMessage(`{"city":"Nowhereville"}`),
				ErrorText:  "unknown city",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := EncodeParts("msg-1", []Part{tt.part})
			if err != nil {
				t.Fatalf("EncodeParts() unexpected error: %v", err)
			}
			if len(rows) != 1 {
				t.Fatalf("expected 1 row, got %d", len(rows))
			}
			if rows[0].MessageID != "msg-1" {
				t.Errorf("row message id = %q, want %q", rows[0].MessageID, "msg-1")
			}
			if rows[0].Order != 0 {
				t.Errorf("row order = %d, want 0", rows[0].Order)
			}
			if rows[0].Type != tt.part.PartType() {
				t.Errorf("row type = %q, want %q", rows[0].Type, tt.part.PartType())
			}

			decoded, err := DecodePart(&rows[0])
			if err != nil {
				t.Fatalf("DecodePart() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(decoded, tt.part) {
				t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, tt.part)
			}
		})
	}
}

func TestEncodePartsAssignsContiguousOrder(t *testing.T) {
	parts := []Part{
		&StepStartPart{},
		&ReasoningPart{Text: "hmm"},
		&TextPart{Text: "answer"},
	}

	rows, err := EncodeParts("msg-1", parts)
	if err != nil {
		t.Fatalf("EncodeParts() unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Order != i {
			t.Errorf("row %d order = %d, want %d", i, row.Order, i)
		}
	}
}

func TestEncodePartsCollapsesDuplicateToolCalls(t *testing.T) {
	parts := []Part{
		&TextPart{Text: "before"},
		&ToolCallPart{ToolCallID: "tc1", State: ToolStateInputStreaming},
		&TextPart{Text: "between"},
		&ToolCallPart{
			ToolCallID: "tc1",
			State:      ToolStateOutputAvailable,
			Input:      json.RawMessage(`{"q":"x"}`),
			Output:     json.RawMessage(`{"ok":true}`),
		},
		&TextPart{Text: "after"},
	}

	rows, err := EncodeParts("msg-1", parts)
	if err != nil {
		t.Fatalf("EncodeParts() unexpected error: %v", err)
	}

	// Duplicate collapses into the first occurrence's position with the
	// last occurrence's state, and order stays contiguous.
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows after collapse, got %d", len(rows))
	}
	if rows[1].Type != PartTypeToolCall {
		t.Fatalf("expected tool-call row at position 1, got %q", rows[1].Type)
	}
	if got := *rows[1].ToolState; got != string(ToolStateOutputAvailable) {
		t.Errorf("collapsed tool state = %q, want %q", got, ToolStateOutputAvailable)
	}
	for i, row := range rows {
		if row.Order != i {
			t.Errorf("row %d order = %d, want %d", i, row.Order, i)
		}
	}
	if *rows[3].TextText != "after" {
		t.Errorf("last row text = %q, want %q", *rows[3].TextText, "after")
	}
}

func TestEncodePartsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		part Part
	}{
		{
			name: "status-data without statusId",
			part: &StatusDataPart{},
		},
		{
			name: "tool call without id",
			part: &ToolCallPart{State: ToolStateInputStreaming},
		},
		{
			name: "tool call with both output and error",
			part: &ToolCallPart{
				ToolCallID: "tc1",
				State:      ToolStateOutputAvailable,
				Input:      json.RawMessage(`{}`),
				Output:     json.RawMessage(`{}`),
				ErrorText:  "boom",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeParts("msg-1", []Part{tt.part})
			if err == nil {
				t.Fatalf("EncodeParts() expected error, got nil")
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDecodePartRejectsCorruptRows(t *testing.T) {
	tests := []struct {
		name string
		row  PartRow
	}{
		{
			name: "unknown type",
			row:  PartRow{ID: "p1", Type: "image"},
		},
		{
			name: "text row with null text_text",
			row:  PartRow{ID: "p1", Type: PartTypeText},
		},
		{
			name: "reasoning row with null reasoning_text",
			row:  PartRow{ID: "p1", Type: PartTypeReasoning},
		},
		{
			name: "status-data row with null status_id",
			row:  PartRow{ID: "p1", Type: PartTypeStatusData},
		},
		{
			name: "tool-call row with null tool_state",
			row:  PartRow{ID: "p1", Type: PartTypeToolCall, ToolCallID: strPtr("tc1")},
		},
		{
			name: "tool-call row with unknown state",
			row: PartRow{
				ID: "p1", Type: PartTypeToolCall,
				ToolCallID: strPtr("tc1"), ToolState: strPtr("pending"),
			},
		},
		{
			name: "tool-call row with both output and error text",
			row: PartRow{
				ID: "p1", Type: PartTypeToolCall,
				ToolCallID:    strPtr("tc1"),
				ToolState:     strPtr(string(ToolStateOutputAvailable)),
				ToolOutput:    json.RawMessage(`{}`),
				ToolErrorText: strPtr("boom"),
			},
		},
		{
			name: "input-available row missing tool_input",
			row: PartRow{
				ID: "p1", Type: PartTypeToolCall,
				ToolCallID: strPtr("tc1"),
				ToolState:  strPtr(string(ToolStateInputAvailable)),
			},
		},
		{
			name: "output-available row missing tool_output",
			row: PartRow{
				ID: "p1", Type: PartTypeToolCall,
				ToolCallID: strPtr("tc1"),
				ToolState:  strPtr(string(ToolStateOutputAvailable)),
				ToolInput:  json.RawMessage(`{}`),
			},
		},
		{
			name: "output-error row missing tool_error_text",
			row: PartRow{
				ID: "p1", Type: PartTypeToolCall,
				ToolCallID: strPtr("tc1"),
				ToolState:  strPtr(string(ToolStateOutputError)),
			},
		},
		{
			name: "input-streaming row carrying output",
			row: PartRow{
				ID: "p1", Type: PartTypeToolCall,
				ToolCallID: strPtr("tc1"),
				ToolState:  strPtr(string(ToolStateInputStreaming)),
				ToolOutput: json.RawMessage(`{}`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePart(&tt.row)
			if err == nil {
				t.Fatalf("DecodePart() expected error, got nil")
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDecodePartsPreservesRowOrder(t *testing.T) {
	rows := []PartRow{
		{ID: "p1", Type: PartTypeStepStart, Order: 0},
		{ID: "p2", Type: PartTypeText, Order: 1, TextText: strPtr("first")},
		{ID: "p3", Type: PartTypeText, Order: 2, TextText: strPtr("second")},
	}

	parts, err := DecodeParts(rows)
	if err != nil {
		t.Fatalf("DecodeParts() unexpected error: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	if _, ok := parts[0].(*StepStartPart); !ok {
		t.Errorf("parts[0] = %T, want *StepStartPart", parts[0])
	}
	if tp, ok := parts[1].(*TextPart); !ok || tp.Text != "first" {
		t.Errorf("parts[1] = %#v, want text 'first'", parts[1])
	}
	if tp, ok := parts[2].(*TextPart); !ok || tp.Text != "second" {
		t.Errorf("parts[2] = %#v, want text 'second'", parts[2])
	}
}

func TestDecodePartsFailsOnAnyCorruptRow(t *testing.T) {
	rows := []PartRow{
		{ID: "p1", Type: PartTypeText, TextText: strPtr("fine")},
		{ID: "p2", Type: PartTypeText}, // corrupt
	}

	if _, err := DecodeParts(rows); err == nil {
		t.Fatal("DecodeParts() expected error for corrupt row, got nil")
	}
}
