package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the Postgres channel new messages are announced on.
const NotifyChannel = "chat_messages"

var (
	ErrEmptyBody      = errors.New("chat: message body is empty")
	ErrMissingSender  = errors.New("chat: missing sender")
	ErrMissingConvoID = errors.New("chat: missing conversation id")
)

type Repository struct {
	pool  *pgxpool.Pool
	idGen func() string
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:  pool,
		idGen: func() string { return uuid.NewString() },
	}
}

func (r *Repository) WithIDGenerator(gen func() string) *Repository {
	r.idGen = gen
	return r
}

// Send appends a message and announces it on NotifyChannel in the same
// transaction, so subscribers only ever see committed rows.
func (r *Repository) Send(ctx context.Context, params SendParams) (Message, error) {
	if params.Body == "" {
		return Message{}, ErrEmptyBody
	}
	if params.SenderID == "" {
		return Message{}, ErrMissingSender
	}
	if params.ConversationID == "" {
		return Message{}, ErrMissingConvoID
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("chat: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var msg Message
	if err := tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body)
		VALUES ($1::uuid, $2, $3::uuid, $4)
		RETURNING id, conversation_id, sender_id, body, created_at
	`, r.idGen(), params.ConversationID, params.SenderID, params.Body).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("chat: insert message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("chat: marshal notify payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(payload)); err != nil {
		return Message{}, fmt.Errorf("chat: notify: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("chat: commit: %w", err)
	}
	return msg, nil
}

// History returns the conversation's most recent messages, oldest first, so
// a subscriber that fell behind the live feed can catch up from the tail.
func (r *Repository) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM (
			SELECT id, conversation_id, sender_id, body, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) tail
		ORDER BY created_at ASC, id ASC
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: history: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate messages: %w", err)
	}
	return msgs, nil
}
