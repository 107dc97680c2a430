package chat

import "time"

// Message mirrors the messages table. Messages are append-only and ordered
// per conversation by creation time. SenderID is nil once the sending
// account has been deleted.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       *string   `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// SendParams enumerates the fields required to append a message.
type SendParams struct {
	ConversationID string
	SenderID       string
	Body           string
}
