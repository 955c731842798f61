package chat

// ToolState is the lifecycle state of a tool-call part.
//
// States advance in one permitted forward order:
//
//	input-streaming -> input-available -> output-available | output-error
//
// Exactly one of the two terminal states is reached; a tool call never
// produces both an output and an error. Each re-upsert of the owning message
// may advance a given tool call to a later state, but the store does not
// itself enforce monotonicity across upserts (it trusts the engine). What IS
// enforced, on both encode and decode, is that a stored (state, fields)
// combination is internally consistent.
type ToolState string

const (
	ToolStateInputStreaming  ToolState = "input-streaming"
	ToolStateInputAvailable  ToolState = "input-available"
	ToolStateOutputAvailable ToolState = "output-available"
	ToolStateOutputError     ToolState = "output-error"
)

// toolStateRank orders states along the lifecycle. Both terminal states share
// the highest rank: neither is "later" than the other, so a terminal part can
// never advance again.
var toolStateRank = map[ToolState]int{
	ToolStateInputStreaming:  0,
	ToolStateInputAvailable:  1,
	ToolStateOutputAvailable: 2,
	ToolStateOutputError:     2,
}

// Valid reports whether s is a known lifecycle state.
func (s ToolState) Valid() bool {
	_, ok := toolStateRank[s]
	return ok
}

// Terminal reports whether s is a terminal state.
func (s ToolState) Terminal() bool {
	return s == ToolStateOutputAvailable || s == ToolStateOutputError
}

// CanAdvanceTo reports whether a part in state s may be replaced by one in
// state next. Only strictly-forward movement is allowed; terminal states
// cannot be left or swapped for the other terminal.
func (s ToolState) CanAdvanceTo(next ToolState) bool {
	sr, ok := toolStateRank[s]
	if !ok {
		return false
	}
	nr, ok := toolStateRank[next]
	if !ok {
		return false
	}
	return nr > sr
}

// validateToolCall checks that a tool-call part's populated fields match its
// state. Used by the codec on encode (rejecting malformed input before it is
// persisted) and mirrored column-wise on decode.
func validateToolCall(p *ToolCallPart) error {
	if p.ToolCallID == "" {
		return codecErrorf("tool-call part missing toolCallId")
	}
	switch p.State {
	case ToolStateInputStreaming:
		// input may be partial or absent while the engine is still
		// streaming it; output fields must not exist yet
		if p.Output != nil || p.ErrorText != "" {
			return codecErrorf("tool call %s: state %q cannot carry output fields", p.ToolCallID, p.State)
		}
	case ToolStateInputAvailable:
		if p.Input == nil {
			return codecErrorf("tool call %s: state %q requires input", p.ToolCallID, p.State)
		}
		if p.Output != nil || p.ErrorText != "" {
			return codecErrorf("tool call %s: state %q cannot carry output fields", p.ToolCallID, p.State)
		}
	case ToolStateOutputAvailable:
		if p.Output == nil {
			return codecErrorf("tool call %s: state %q requires output", p.ToolCallID, p.State)
		}
		if p.ErrorText != "" {
			return codecErrorf("tool call %s: has both output and errorText", p.ToolCallID)
		}
	case ToolStateOutputError:
		if p.ErrorText == "" {
			return codecErrorf("tool call %s: state %q requires errorText", p.ToolCallID, p.State)
		}
		if p.Output != nil {
			return codecErrorf("tool call %s: has both output and errorText", p.ToolCallID)
		}
	default:
		return codecErrorf("tool call %s: unrecognized state %q", p.ToolCallID, string(p.State))
	}
	return nil
}
