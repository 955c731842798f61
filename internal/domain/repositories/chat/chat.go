package chat

import (
	"context"

	"parley/internal/domain/models/chat"
)

// ChatRepository defines data access for chat identities
type ChatRepository interface {
	// CreateChat creates a new chat
	// Returns domain.ErrConflict if the id is already taken
	CreateChat(ctx context.Context, c *chat.Chat) error

	// GetChat retrieves a chat by ID
	// Returns domain.ErrNotFound if not found
	GetChat(ctx context.Context, chatID string) (*chat.Chat, error)

	// ListChats retrieves all chats
	// Returns empty slice if none exist
	ListChats(ctx context.Context) ([]chat.Chat, error)

	// DeleteChat deletes a chat and, via cascade, every message and part in it
	// Returns domain.ErrNotFound if not found
	DeleteChat(ctx context.Context, chatID string) error
}
