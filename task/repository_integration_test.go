package task

import (
	"context"
	"errors"
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

func seedUser(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	var id string
	err := pool.QueryRow(context.Background(), `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, 'x', 'manager')
		RETURNING id`,
		"task-it-"+suffix, "task-it-"+suffix+"@example.com").Scan(&id)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func TestListSurvivesAuthorDeletion(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	author := seedUser(t, pool)
	rec, err := repo.Create(ctx, CreateParams{Title: "Photograph trade-in", CreatedBy: author})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, rec.ID)
	})
	if rec.CreatedBy == nil || *rec.CreatedBy != author {
		t.Fatalf("created_by = %v, want %s", rec.CreatedBy, author)
	}

	// Deleting the author nulls tasks.created_by via ON DELETE SET NULL.
	if _, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, author); err != nil {
		t.Fatalf("delete author: %v", err)
	}

	tasks, err := repo.List(ctx, ListFilters{})
	if err != nil {
		t.Fatalf("list after author deletion: %v", err)
	}
	var found bool
	for _, got := range tasks {
		if got.ID != rec.ID {
			continue
		}
		found = true
		if got.CreatedBy != nil {
			t.Fatalf("created_by = %q, want nil after author deletion", *got.CreatedBy)
		}
	}
	if !found {
		t.Fatalf("task %s missing from list", rec.ID)
	}
}

func TestCompleteRoundTrip(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	author := seedUser(t, pool)
	rec, err := repo.Create(ctx, CreateParams{Title: "Order title paperwork", CreatedBy: author})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, rec.ID)
	})

	done, err := repo.Complete(ctx, rec.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusDone || done.CompletedAt == nil {
		t.Fatalf("unexpected completed record: %+v", done)
	}
	if _, err := repo.Complete(ctx, rec.ID); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("second complete: err = %v, want ErrBadStatus", err)
	}
}
