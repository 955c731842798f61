package chat

import (
	"time"
)

// Role values for messages
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Roles lists every valid message role (used by service validation).
var Roles = []interface{}{RoleUser, RoleAssistant, RoleSystem}

// Chat is a conversation identity. It carries no payload of its own:
// everything lives in the messages that reference it, and deleting a chat
// cascades to them.
type Chat struct {
	ID string `json:"id" db:"id"`
}

// Message is one turn of a conversation: an ordered sequence of typed parts
// owned by exactly one chat.
//
// CreatedAt is assigned on first insert and never updated afterwards, even
// when the message is re-upserted while a stream is in progress. Within a
// chat, messages are totally ordered by (CreatedAt, ID); that ordering is the
// canonical conversation order and is stable across repeated loads.
type Message struct {
	ID        string    `json:"id" db:"id"`
	ChatID    string    `json:"chat_id" db:"chat_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Parts     []Part    `json:"parts"`
}
