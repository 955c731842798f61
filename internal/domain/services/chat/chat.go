package chat

import (
	"context"
	"encoding/json"

	"parley/internal/domain/models/chat"
)

// ChatService defines the business logic for chat persistence
type ChatService interface {
	// CreateChat creates a new chat. Generates an id when the request
	// doesn't carry one.
	CreateChat(ctx context.Context, req *CreateChatRequest) (*chat.Chat, error)

	// ListChats retrieves all chats
	ListChats(ctx context.Context) ([]chat.Chat, error)

	// DeleteChat deletes a chat and everything in it.
	// Idempotent: deleting an absent chat is a no-op.
	DeleteChat(ctx context.Context, chatID string) error

	// UpsertMessage saves one full message snapshot: the message row is
	// inserted or updated and its parts are replaced wholesale, in one
	// transaction. Repeated calls with the same message id converge on the
	// latest snapshot; created_at keeps its original value throughout.
	UpsertMessage(ctx context.Context, req *UpsertMessageRequest) (*chat.Message, error)

	// LoadChat reconstructs a chat's full message history in conversation
	// order (created_at, then id), each message with its parts in stored
	// order. Returns an empty slice for an unknown or empty chat, never an
	// error for an absent id.
	LoadChat(ctx context.Context, chatID string) ([]chat.Message, error)

	// GetMessage retrieves a single message with its parts
	GetMessage(ctx context.Context, messageID string) (*chat.Message, error)

	// DeleteMessage deletes a message and every later message in its chat
	// (truncate-forward, matching how a conversation is rewound).
	// Idempotent: deleting an absent message is a no-op.
	DeleteMessage(ctx context.Context, messageID string) error
}

// CreateChatRequest is the DTO for creating a new chat
type CreateChatRequest struct {
	ID string `json:"id,omitempty"`
}

// UpsertMessageRequest is the DTO for saving a message snapshot
type UpsertMessageRequest struct {
	ChatID    string      `json:"chat_id"`
	MessageID string      `json:"id"`
	Role      string      `json:"role"`
	Parts     []chat.Part `json:"parts"`
}

// UnmarshalJSON decodes the heterogeneous part list by its type discriminant
func (r *UpsertMessageRequest) UnmarshalJSON(data []byte) error {
	type alias UpsertMessageRequest
	aux := struct {
		*alias
		Parts []json.RawMessage `json:"parts"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Parts = make([]chat.Part, 0, len(aux.Parts))
	for _, raw := range aux.Parts {
		part, err := chat.UnmarshalPart(raw)
		if err != nil {
			return err
		}
		r.Parts = append(r.Parts, part)
	}
	return nil
}
