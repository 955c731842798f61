package completion

import (
	"encoding/json"
	"fmt"

	llmprovider "github.com/haowjy/meridian-llm-go"

	chatModels "parley/internal/domain/models/chat"
	chatSvc "parley/internal/domain/services/chat"
)

// Engine block types. The engine vocabulary ("thinking", "tool_use") differs
// from the stored part vocabulary ("reasoning", "tool-call"); conversion
// happens here and nowhere else.
const (
	engineBlockText     = "text"
	engineBlockThinking = "thinking"
	engineBlockToolUse  = "tool_use"
	engineBlockToolRes  = "tool_result"
)

// convertToEngineRequest converts a domain GenerateRequest to the library request
func convertToEngineRequest(req *chatSvc.GenerateRequest) (*llmprovider.GenerateRequest, error) {
	messages := make([]llmprovider.Message, 0, len(req.Messages))
	for i := range req.Messages {
		msg, err := convertMessage(&req.Messages[i])
		if err != nil {
			return nil, err
		}
		if len(msg.Blocks) == 0 {
			// Engines reject empty messages; skip placeholders
			continue
		}
		messages = append(messages, *msg)
	}

	var params *llmprovider.RequestParams
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		params = &llmprovider.RequestParams{MaxTokens: &maxTokens}
	}

	return &llmprovider.GenerateRequest{
		Messages: messages,
		Model:    req.Model,
		Params:   params,
	}, nil
}

// convertMessage maps one stored message to an engine message. Step markers
// and status parts are presentation-only and don't reach the engine.
func convertMessage(msg *chatModels.Message) (*llmprovider.Message, error) {
	blocks := make([]*llmprovider.Block, 0, len(msg.Parts))
	seq := 0

	appendBlock := func(blockType string, text *string, content map[string]interface{}) {
		blocks = append(blocks, &llmprovider.Block{
			BlockType:   blockType,
			Sequence:    seq,
			TextContent: text,
			Content:     content,
		})
		seq++
	}

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case *chatModels.TextPart:
			text := p.Text
			appendBlock(engineBlockText, &text, nil)
		case *chatModels.ReasoningPart:
			text := p.Text
			appendBlock(engineBlockThinking, &text, nil)
		case *chatModels.ToolCallPart:
			content := map[string]interface{}{
				"tool_use_id": p.ToolCallID,
			}
			if p.Input != nil {
				var input interface{}
				if err := json.Unmarshal(p.Input, &input); err != nil {
					return nil, fmt.Errorf("tool call %s: parse input: %w", p.ToolCallID, err)
				}
				content["input"] = input
			}
			appendBlock(engineBlockToolUse, nil, content)

			// A finished tool call also replays its result so the engine
			// sees what the tool returned
			if p.State == chatModels.ToolStateOutputAvailable && p.Output != nil {
				var output interface{}
				if err := json.Unmarshal(p.Output, &output); err != nil {
					return nil, fmt.Errorf("tool call %s: parse output: %w", p.ToolCallID, err)
				}
				appendBlock(engineBlockToolRes, nil, map[string]interface{}{
					"tool_use_id": p.ToolCallID,
					"content":     output,
				})
			} else if p.State == chatModels.ToolStateOutputError && p.ErrorText != "" {
				appendBlock(engineBlockToolRes, nil, map[string]interface{}{
					"tool_use_id": p.ToolCallID,
					"content":     p.ErrorText,
					"is_error":    true,
				})
			}
		case *chatModels.StepStartPart, *chatModels.StatusDataPart:
			// presentation-only
		}
	}

	return &llmprovider.Message{
		Role:   msg.Role,
		Blocks: blocks,
	}, nil
}

// convertFromEngineEvent converts a library StreamEvent to a domain StreamEvent
func convertFromEngineEvent(event llmprovider.StreamEvent) chatSvc.StreamEvent {
	domainEvent := chatSvc.StreamEvent{
		Error: event.Error,
	}

	if event.Delta != nil {
		domainEvent.Delta = &chatSvc.PartDelta{
			PartIndex:      event.Delta.BlockIndex,
			PartType:       convertBlockType(event.Delta.BlockType),
			DeltaType:      event.Delta.DeltaType,
			TextDelta:      event.Delta.TextDelta,
			InputJSONDelta: event.Delta.JSONDelta,
			ToolCallID:     event.Delta.ToolCallID,
			ToolCallName:   event.Delta.ToolCallName,
		}
	}

	if event.Metadata != nil {
		domainEvent.Metadata = &chatSvc.StreamMetadata{
			Model:            event.Metadata.Model,
			InputTokens:      event.Metadata.InputTokens,
			OutputTokens:     event.Metadata.OutputTokens,
			StopReason:       event.Metadata.StopReason,
			ResponseMetadata: event.Metadata.ResponseMetadata,
		}
	}

	return domainEvent
}

// convertBlockType maps engine block types onto part types
func convertBlockType(blockType *string) *string {
	if blockType == nil {
		return nil
	}

	var partType string
	switch *blockType {
	case engineBlockThinking:
		partType = chatModels.PartTypeReasoning
	case engineBlockToolUse:
		partType = chatModels.PartTypeToolCall
	default:
		partType = chatModels.PartTypeText
	}
	return &partType
}

// convertFromEngineResponse converts a complete library response to domain parts
func convertFromEngineResponse(resp *llmprovider.GenerateResponse) (*chatSvc.GenerateResponse, error) {
	parts := make([]chatModels.Part, 0, len(resp.Blocks))
	for _, block := range resp.Blocks {
		switch block.BlockType {
		case engineBlockText:
			if block.TextContent != nil {
				parts = append(parts, &chatModels.TextPart{Text: *block.TextContent})
			}
		case engineBlockThinking:
			if block.TextContent != nil {
				parts = append(parts, &chatModels.ReasoningPart{Text: *block.TextContent})
			}
		case engineBlockToolUse:
			part, err := convertToolUseBlock(block)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
	}

	return &chatSvc.GenerateResponse{
		Parts:        parts,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		StopReason:   resp.StopReason,
	}, nil
}

func convertToolUseBlock(block *llmprovider.Block) (chatModels.Part, error) {
	part := &chatModels.ToolCallPart{
		State: chatModels.ToolStateInputAvailable,
	}
	if id, ok := block.Content["tool_use_id"].(string); ok {
		part.ToolCallID = id
	}
	if input, ok := block.Content["input"]; ok {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("tool call %s: encode input: %w", part.ToolCallID, err)
		}
		part.Input = raw
	} else {
		part.Input = json.RawMessage("{}")
	}
	return part, nil
}
