package chat

import (
	"encoding/json"
)

// Wire (JSON) form of the part union, used by the HTTP layer, SSE payloads
// and seed fixtures. Every variant serializes as a flat object with a "type"
// discriminant, mirroring how the browser-side message model is shaped.

// partEnvelope is the superset of all variant fields.
type partEnvelope struct {
	Type string `json:"type"`

	// text / reasoning
	Text             *string                `json:"text,omitempty"`
	ProviderMetadata map[string]interface{} `json:"providerMetadata,omitempty"`

	// status-data
	StatusID *string                `json:"statusId,omitempty"`
	Fields   map[string]interface{} `json:"fields,omitempty"`

	// tool-call
	ToolCallID *string         `json:"toolCallId,omitempty"`
	State      *string         `json:"state,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  *string         `json:"errorText,omitempty"`
}

// MarshalPart serializes a part to its wire form.
func MarshalPart(part Part) ([]byte, error) {
	env := partEnvelope{Type: part.PartType()}

	switch p := part.(type) {
	case *TextPart:
		env.Text = &p.Text
	case *ReasoningPart:
		env.Text = &p.Text
		env.ProviderMetadata = p.ProviderMetadata
	case *StepStartPart:
		// marker only
	case *StatusDataPart:
		env.StatusID = &p.StatusID
		env.Fields = p.Fields
	case *ToolCallPart:
		env.ToolCallID = &p.ToolCallID
		state := string(p.State)
		env.State = &state
		env.Input = p.Input
		env.Output = p.Output
		if p.ErrorText != "" {
			env.ErrorText = &p.ErrorText
		}
	default:
		return nil, codecErrorf("unsupported part type %T", part)
	}

	return json.Marshal(env)
}

// UnmarshalPart parses the wire form back into a part. Structural problems
// (unknown type, missing required fields) surface as ValidationError; deeper
// state/field consistency is re-checked by the codec when the part is
// persisted.
func UnmarshalPart(data []byte) (Part, error) {
	var env partEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, codecErrorf("malformed part: %v", err)
	}

	switch env.Type {
	case PartTypeText:
		if env.Text == nil {
			return nil, codecErrorf("text part missing text")
		}
		return &TextPart{Text: *env.Text}, nil
	case PartTypeReasoning:
		if env.Text == nil {
			return nil, codecErrorf("reasoning part missing text")
		}
		return &ReasoningPart{Text: *env.Text, ProviderMetadata: env.ProviderMetadata}, nil
	case PartTypeStepStart:
		return &StepStartPart{}, nil
	case PartTypeStatusData:
		if env.StatusID == nil {
			return nil, codecErrorf("status-data part missing statusId")
		}
		return &StatusDataPart{StatusID: *env.StatusID, Fields: env.Fields}, nil
	case PartTypeToolCall:
		if env.ToolCallID == nil {
			return nil, codecErrorf("tool-call part missing toolCallId")
		}
		if env.State == nil {
			return nil, codecErrorf("tool call %s: missing state", *env.ToolCallID)
		}
		part := &ToolCallPart{
			ToolCallID: *env.ToolCallID,
			State:      ToolState(*env.State),
			Input:      env.Input,
			Output:     env.Output,
		}
		if env.ErrorText != nil {
			part.ErrorText = *env.ErrorText
		}
		return part, nil
	default:
		return nil, codecErrorf("unsupported part type %q", env.Type)
	}
}

// MarshalJSON implementations so a []Part inside Message serializes with the
// type discriminant.
func (p *TextPart) MarshalJSON() ([]byte, error)       { return MarshalPart(p) }
func (p *ReasoningPart) MarshalJSON() ([]byte, error)  { return MarshalPart(p) }
func (p *StepStartPart) MarshalJSON() ([]byte, error)  { return MarshalPart(p) }
func (p *StatusDataPart) MarshalJSON() ([]byte, error) { return MarshalPart(p) }
func (p *ToolCallPart) MarshalJSON() ([]byte, error)   { return MarshalPart(p) }

// UnmarshalJSON parses a message including its heterogeneous part list.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Parts []json.RawMessage `json:"parts"`
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.Parts = make([]Part, 0, len(aux.Parts))
	for _, raw := range aux.Parts {
		part, err := UnmarshalPart(raw)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}
