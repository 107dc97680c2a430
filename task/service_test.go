package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(newFakeStore())

	if _, err := svc.Create(context.Background(), CreateParams{CreatedBy: "u1"}); err == nil {
		t.Error("expected error for missing title")
	}
	if _, err := svc.Create(context.Background(), CreateParams{Title: "Detail the Accord"}); err == nil {
		t.Error("expected error for missing creator")
	}
}

func TestService_CreateAndComplete(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	due := time.Now().Add(48 * time.Hour)
	rec, err := svc.Create(context.Background(), CreateParams{
		Title:     "Detail the Accord",
		DueAt:     &due,
		CreatedBy: "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Status != StatusOpen {
		t.Fatalf("expected open status, got %s", rec.Status)
	}

	done, err := svc.Complete(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusDone || done.CompletedAt == nil {
		t.Fatalf("expected done record, got %+v", done)
	}

	if _, err := svc.Complete(context.Background(), rec.ID); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus on double completion, got %v", err)
	}
}

func TestService_ListFilters(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	assignee := "u2"
	for i := 0; i < 3; i++ {
		params := CreateParams{Title: fmt.Sprintf("task %d", i), CreatedBy: "u1"}
		if i < 2 {
			params.AssigneeID = &assignee
		}
		if _, err := svc.Create(context.Background(), params); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	mine, err := svc.List(context.Background(), ListFilters{AssigneeID: assignee})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 assigned tasks, got %d", len(mine))
	}
}

func TestService_Delete(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	rec, err := svc.Create(context.Background(), CreateParams{Title: "x", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(context.Background(), rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type fakeStore struct {
	tasks  map[string]Record
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]Record)}
}

func (f *fakeStore) Create(_ context.Context, params CreateParams) (Record, error) {
	f.nextID++
	now := time.Now()
	rec := Record{
		ID:         fmt.Sprintf("task-%d", f.nextID),
		Title:      params.Title,
		Notes:      params.Notes,
		AssigneeID: params.AssigneeID,
		VehicleID:  params.VehicleID,
		DueAt:      params.DueAt,
		Status:     StatusOpen,
		CreatedBy:  &params.CreatedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.tasks[rec.ID] = rec
	return rec, nil
}

func (f *fakeStore) List(_ context.Context, filters ListFilters) ([]Record, error) {
	out := []Record{}
	for _, rec := range f.tasks {
		if filters.AssigneeID != "" && (rec.AssigneeID == nil || *rec.AssigneeID != filters.AssigneeID) {
			continue
		}
		if filters.Status != "" && rec.Status != filters.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) Complete(_ context.Context, taskID string) (Record, error) {
	rec, ok := f.tasks[taskID]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Status == StatusDone {
		return Record{}, ErrBadStatus
	}
	now := time.Now()
	rec.Status = StatusDone
	rec.CompletedAt = &now
	rec.UpdatedAt = now
	f.tasks[taskID] = rec
	return rec, nil
}

func (f *fakeStore) Delete(_ context.Context, taskID string) error {
	if _, ok := f.tasks[taskID]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, taskID)
	return nil
}
