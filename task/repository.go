package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("task: not found")
	ErrBadStatus = errors.New("task: invalid status transition")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, title, notes, assignee_id, vehicle_id, due_at, status::text, created_by, created_at, updated_at, completed_at`

func (r *Repository) Create(ctx context.Context, params CreateParams) (Record, error) {
	insertSQL := `
		INSERT INTO tasks (title, notes, assignee_id, vehicle_id, due_at, status, created_by)
		VALUES ($1, $2, $3::uuid, $4::uuid, $5, 'open', $6::uuid)
		RETURNING ` + taskColumns

	rec, err := scanTask(r.pool.QueryRow(ctx, insertSQL,
		params.Title, params.Notes, params.AssigneeID, params.VehicleID, params.DueAt, params.CreatedBy))
	if err != nil {
		return Record{}, fmt.Errorf("task: create: %w", err)
	}
	return rec, nil
}

func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Record, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}
	if filters.AssigneeID != "" {
		args = append(args, filters.AssigneeID)
		query += fmt.Sprintf(" AND assignee_id = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d::task_status", len(args))
	}
	query += " ORDER BY due_at ASC NULLS LAST, created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("task: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("task: iterate: %w", err)
	}
	return out, nil
}

// Complete marks a task done with a conditional write; completing a
// completed task reports ErrBadStatus.
func (r *Repository) Complete(ctx context.Context, taskID string) (Record, error) {
	updateSQL := `
		UPDATE tasks
		SET status = 'done',
		    completed_at = now(),
		    updated_at = now()
		WHERE id = $1 AND status <> 'done'
		RETURNING ` + taskColumns

	rec, err := scanTask(r.pool.QueryRow(ctx, updateSQL, taskID))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("task: complete: %w", err)
	}

	var status Status
	if err := r.pool.QueryRow(ctx, `SELECT status::text FROM tasks WHERE id = $1`, taskID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("task: complete fetch: %w", err)
	}
	if status == StatusDone {
		return Record{}, ErrBadStatus
	}
	return Record{}, ErrNotFound
}

func (r *Repository) Delete(ctx context.Context, taskID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("task: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Notes,
		&rec.AssigneeID,
		&rec.VehicleID,
		&rec.DueAt,
		&rec.Status,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.CompletedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
