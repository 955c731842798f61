package completion

import (
	"encoding/json"
	"strings"

	chatModels "parley/internal/domain/models/chat"
	chatSvc "parley/internal/domain/services/chat"
)

// PartAccumulator accumulates streaming deltas into message parts.
//
// Flow:
//  1. Receive PartDelta events from the engine stream
//  2. Accumulate deltas for the current part in memory
//  3. When the part index changes, seal the current part and start the next
//  4. The executor persists a whole-message snapshot at each seal point
//
// Unlike a row-at-a-time writer, nothing is written here: persistence is
// always a full snapshot upsert, which is what makes mid-stream reconnection
// and crash recovery read a consistent message.
//
// Thread-safety: NOT thread-safe. Owned by a single MessageExecutor goroutine;
// the executor guards cross-goroutine access (catchup) with its own lock.
type PartAccumulator struct {
	sealed []chatModels.Part

	// Current part being accumulated
	currentIndex int
	currentType  string
	text         strings.Builder
	inputJSON    strings.Builder
	toolCallID   string
}

// NewPartAccumulator creates an empty accumulator
func NewPartAccumulator() *PartAccumulator {
	return &PartAccumulator{
		currentIndex: -1, // no part started yet
	}
}

// ProcessDelta processes a single delta.
// Returns the sealed part if the delta started a new part, nil otherwise.
func (acc *PartAccumulator) ProcessDelta(delta *chatSvc.PartDelta) chatModels.Part {
	if delta.PartIndex != acc.currentIndex {
		sealedPart := acc.sealCurrent()
		acc.startNewPart(delta)
		return sealedPart
	}

	acc.accumulateDelta(delta)
	return nil
}

// Finalize seals any remaining part (called when streaming ends).
// Returns the final part if one existed, nil otherwise.
func (acc *PartAccumulator) Finalize() chatModels.Part {
	return acc.sealCurrent()
}

// Parts returns the sealed parts
func (acc *PartAccumulator) Parts() []chatModels.Part {
	return acc.sealed
}

// Snapshot returns sealed parts plus the in-progress part, if any. This is
// the exact sequence a snapshot upsert persists mid-stream.
func (acc *PartAccumulator) Snapshot() []chatModels.Part {
	snapshot := make([]chatModels.Part, len(acc.sealed), len(acc.sealed)+1)
	copy(snapshot, acc.sealed)

	if current := acc.buildCurrent(false); current != nil {
		snapshot = append(snapshot, current)
	}
	return snapshot
}

// CurrentPart returns the in-progress part without sealing it (for catchup
// events). Returns nil if no part is being accumulated.
func (acc *PartAccumulator) CurrentPart() chatModels.Part {
	return acc.buildCurrent(false)
}

func (acc *PartAccumulator) startNewPart(delta *chatSvc.PartDelta) {
	acc.currentIndex = delta.PartIndex
	if delta.PartType != nil {
		acc.currentType = *delta.PartType
	} else {
		acc.currentType = chatModels.PartTypeText
	}

	acc.text.Reset()
	acc.inputJSON.Reset()
	acc.toolCallID = ""

	acc.accumulateDelta(delta)
}

func (acc *PartAccumulator) accumulateDelta(delta *chatSvc.PartDelta) {
	if delta.TextDelta != nil {
		acc.text.WriteString(*delta.TextDelta)
	}
	if delta.InputJSONDelta != nil {
		acc.inputJSON.WriteString(*delta.InputJSONDelta)
	}
	if delta.ToolCallID != nil {
		acc.toolCallID = *delta.ToolCallID
	}
}

// sealCurrent finishes the in-progress part and appends it to the sealed list
func (acc *PartAccumulator) sealCurrent() chatModels.Part {
	part := acc.buildCurrent(true)
	if part == nil {
		return nil
	}

	acc.sealed = append(acc.sealed, part)
	acc.currentIndex = -1
	return part
}

// buildCurrent materializes the in-progress part. When final is true the
// accumulated tool input is treated as complete; otherwise the part stays in
// its streaming state.
func (acc *PartAccumulator) buildCurrent(final bool) chatModels.Part {
	if acc.currentIndex == -1 {
		return nil
	}

	switch acc.currentType {
	case chatModels.PartTypeReasoning:
		return &chatModels.ReasoningPart{Text: acc.text.String()}
	case chatModels.PartTypeToolCall:
		part := &chatModels.ToolCallPart{
			ToolCallID: acc.toolCallID,
			State:      chatModels.ToolStateInputStreaming,
		}
		if final {
			input := acc.inputJSON.String()
			if input == "" {
				input = "{}"
			}
			// Only advance when the accumulated input is whole; a stream cut
			// mid-JSON stays input-streaming rather than storing garbage
			if json.Valid([]byte(input)) {
				part.State = chatModels.ToolStateInputAvailable
				part.Input = json.RawMessage(input)
			}
		}
		return part
	default:
		return &chatModels.TextPart{Text: acc.text.String()}
	}
}
