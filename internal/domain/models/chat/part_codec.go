package chat

import (
	"fmt"

	"parley/internal/domain"
)

// PartCodec is the bidirectional mapping between in-memory parts and their
// relational rows. It is pure and stateless: EncodeParts and DecodeParts form
// a round-trip pair (decode(encode(p)) == p for every valid p), encode is
// total over all variants, and decode treats a row violating its variant's
// column contract as data corruption, never as something to default away.

// codecErrorf builds the ValidationError all codec failures share.
func codecErrorf(format string, args ...interface{}) error {
	return &domain.ValidationError{Message: fmt.Sprintf(format, args...)}
}

// EncodeParts maps an ordered part sequence onto rows for messageID.
//
// Order is assigned from the sequence position, 0-based and contiguous.
// Duplicate tool-call ids within the sequence are collapsed before encoding:
// the last occurrence (the latest lifecycle state the engine reported) wins
// and keeps the position where the call first appeared, so a message stores
// at most one row per tool call. Row ids and timestamps are left for the
// store to fill.
func EncodeParts(messageID string, parts []Part) ([]PartRow, error) {
	parts = collapseToolCalls(parts)

	rows := make([]PartRow, 0, len(parts))
	for i, part := range parts {
		row, err := encodePart(messageID, i, part)
		if err != nil {
			return nil, fmt.Errorf("encode part %d: %w", i, err)
		}
		rows = append(rows, *row)
	}
	return rows, nil
}

// collapseToolCalls keeps the last part seen for each toolCallId, in the
// position of the first occurrence. Non-tool parts pass through untouched.
func collapseToolCalls(parts []Part) []Part {
	seen := make(map[string]int) // toolCallId -> index in out
	out := make([]Part, 0, len(parts))
	for _, part := range parts {
		tc, ok := part.(*ToolCallPart)
		if !ok {
			out = append(out, part)
			continue
		}
		if idx, dup := seen[tc.ToolCallID]; dup && tc.ToolCallID != "" {
			out[idx] = tc
			continue
		}
		seen[tc.ToolCallID] = len(out)
		out = append(out, tc)
	}
	return out
}

func encodePart(messageID string, order int, part Part) (*PartRow, error) {
	row := &PartRow{
		MessageID: messageID,
		Order:     order,
	}

	switch p := part.(type) {
	case *TextPart:
		row.Type = PartTypeText
		row.TextText = &p.Text
	case *ReasoningPart:
		row.Type = PartTypeReasoning
		row.ReasoningText = &p.Text
		row.ReasoningProviderMetadata = p.ProviderMetadata
	case *StepStartPart:
		row.Type = PartTypeStepStart
	case *StatusDataPart:
		if p.StatusID == "" {
			return nil, codecErrorf("status-data part missing statusId")
		}
		row.Type = PartTypeStatusData
		row.StatusID = &p.StatusID
		row.StatusFields = p.Fields
	case *ToolCallPart:
		if err := validateToolCall(p); err != nil {
			return nil, err
		}
		row.Type = PartTypeToolCall
		row.ToolCallID = &p.ToolCallID
		state := string(p.State)
		row.ToolState = &state
		row.ToolInput = p.Input
		row.ToolOutput = p.Output
		if p.ErrorText != "" {
			row.ToolErrorText = &p.ErrorText
		}
	default:
		// A new Part implementation must be wired here explicitly; dropping
		// it silently would lose data.
		return nil, codecErrorf("unsupported part type %T", part)
	}

	return row, nil
}

// DecodeParts maps rows (already ordered by the store) back to parts.
func DecodeParts(rows []PartRow) ([]Part, error) {
	parts := make([]Part, 0, len(rows))
	for i := range rows {
		part, err := DecodePart(&rows[i])
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// DecodePart maps a single row back to its part. A row whose
// required-for-type columns are null is corrupt and fails decoding.
func DecodePart(row *PartRow) (Part, error) {
	required, ok := requiredColumns[row.Type]
	if !ok {
		return nil, codecErrorf("part %s: unrecognized type %q", row.ID, row.Type)
	}
	for _, col := range required {
		if !col.present(row) {
			return nil, codecErrorf("part %s: type %q requires column %s", row.ID, row.Type, col.name)
		}
	}

	switch row.Type {
	case PartTypeText:
		return &TextPart{Text: *row.TextText}, nil
	case PartTypeReasoning:
		return &ReasoningPart{
			Text:             *row.ReasoningText,
			ProviderMetadata: row.ReasoningProviderMetadata,
		}, nil
	case PartTypeStepStart:
		return &StepStartPart{}, nil
	case PartTypeStatusData:
		return &StatusDataPart{
			StatusID: *row.StatusID,
			Fields:   row.StatusFields,
		}, nil
	case PartTypeToolCall:
		return decodeToolCall(row)
	}
	// Unreachable: requiredColumns and this switch cover the same closed set.
	return nil, codecErrorf("part %s: unrecognized type %q", row.ID, row.Type)
}

// decodeToolCall applies the per-state column contract on top of the base
// tool-call requirements already checked by DecodePart.
func decodeToolCall(row *PartRow) (Part, error) {
	state := ToolState(*row.ToolState)
	if !state.Valid() {
		return nil, codecErrorf("part %s: unrecognized tool state %q", row.ID, *row.ToolState)
	}

	// A row carrying both terminal payloads is a contract violation no
	// matter what state claims: the encoder can never produce it.
	if row.ToolOutput != nil && row.ToolErrorText != nil {
		return nil, codecErrorf("part %s: tool-call row has both tool_output and tool_error_text", row.ID)
	}

	part := &ToolCallPart{
		ToolCallID: *row.ToolCallID,
		State:      state,
		Input:      row.ToolInput,
	}

	switch state {
	case ToolStateInputStreaming:
		if row.ToolOutput != nil || row.ToolErrorText != nil {
			return nil, codecErrorf("part %s: state %q cannot carry output columns", row.ID, state)
		}
	case ToolStateInputAvailable:
		if row.ToolInput == nil {
			return nil, codecErrorf("part %s: state %q requires tool_input", row.ID, state)
		}
		if row.ToolOutput != nil || row.ToolErrorText != nil {
			return nil, codecErrorf("part %s: state %q cannot carry output columns", row.ID, state)
		}
	case ToolStateOutputAvailable:
		if row.ToolOutput == nil {
			return nil, codecErrorf("part %s: state %q requires tool_output", row.ID, state)
		}
		part.Output = row.ToolOutput
	case ToolStateOutputError:
		if row.ToolErrorText == nil {
			return nil, codecErrorf("part %s: state %q requires tool_error_text", row.ID, state)
		}
		part.ErrorText = *row.ToolErrorText
	}

	return part, nil
}
