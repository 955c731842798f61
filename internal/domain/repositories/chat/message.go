package chat

import (
	"context"

	"parley/internal/domain/models/chat"
)

// MessageRepository defines data access for messages and their parts.
//
// Part conversion happens at this boundary: callers deal in chat.Part values
// only, never in rows. Upsert and ReplaceParts are meant to run together
// inside one transaction (see TransactionManager); a message whose parts were
// only half-replaced must never be observable.
type MessageRepository interface {
	// Upsert inserts the message row or, when the id already exists, updates
	// its chat_id and role in place. CreatedAt is assigned by the database on
	// first insert, survives every later upsert, and is written back to msg.
	// Returns domain.ErrNotFound if the chat does not exist.
	Upsert(ctx context.Context, msg *chat.Message) error

	// ReplaceParts swaps the message's stored parts for the given sequence,
	// atomically with respect to the surrounding transaction.
	ReplaceParts(ctx context.Context, messageID string, parts []chat.Part) error

	// Get retrieves a message with its parts decoded, in stored order.
	// Returns domain.ErrNotFound if not found.
	Get(ctx context.Context, messageID string) (*chat.Message, error)

	// ListByChat retrieves every message in a chat ordered by (created_at, id),
	// each with its parts decoded in stored order.
	// Returns empty slice if the chat has no messages.
	ListByChat(ctx context.Context, chatID string) ([]chat.Message, error)

	// TruncateFrom deletes the message and every later message in its chat,
	// "later" meaning greater by the (created_at, id) conversation order.
	// Returns domain.ErrNotFound if the message does not exist.
	TruncateFrom(ctx context.Context, messageID string) error
}
