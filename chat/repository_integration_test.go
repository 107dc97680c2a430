package chat

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func seedSender(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	var id string
	err := pool.QueryRow(context.Background(), `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, 'x', 'seller')
		RETURNING id`,
		"chat-it-"+suffix, "chat-it-"+suffix+"@example.com").Scan(&id)
	if err != nil {
		t.Fatalf("seed sender: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func cleanupConversation(t *testing.T, pool *pgxpool.Pool, conversationID string) {
	t.Helper()
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	})
}

func TestHistorySurvivesSenderDeletion(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	sender := seedSender(t, pool)
	convo := fmt.Sprintf("it-del-%d", time.Now().UnixNano())
	cleanupConversation(t, pool, convo)

	sent, err := repo.Send(ctx, SendParams{ConversationID: convo, SenderID: sender, Body: "keys are in the lockbox"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.SenderID == nil || *sent.SenderID != sender {
		t.Fatalf("sender_id = %v, want %s", sent.SenderID, sender)
	}

	// Deleting the sender nulls messages.sender_id via ON DELETE SET NULL.
	if _, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, sender); err != nil {
		t.Fatalf("delete sender: %v", err)
	}

	msgs, err := repo.History(ctx, convo, 50)
	if err != nil {
		t.Fatalf("history after sender deletion: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].SenderID != nil {
		t.Fatalf("sender_id = %q, want nil after sender deletion", *msgs[0].SenderID)
	}
	if msgs[0].Body != "keys are in the lockbox" {
		t.Fatalf("unexpected body %q", msgs[0].Body)
	}
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	sender := seedSender(t, pool)
	convo := fmt.Sprintf("it-tail-%d", time.Now().UnixNano())
	cleanupConversation(t, pool, convo)

	for i := 0; i < 5; i++ {
		if _, err := repo.Send(ctx, SendParams{
			ConversationID: convo,
			SenderID:       sender,
			Body:           fmt.Sprintf("message %d", i),
		}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	msgs, err := repo.History(ctx, convo, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Body != "message 3" || msgs[1].Body != "message 4" {
		t.Fatalf("expected the two newest messages oldest first, got %q then %q",
			msgs[0].Body, msgs[1].Body)
	}
}
