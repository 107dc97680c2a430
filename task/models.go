package task

import "time"

// Status represents the lifecycle of a task or scheduled event.
type Status string

const (
	StatusOpen Status = "open"
	StatusDone Status = "done"
)

// Record mirrors the tasks table.
type Record struct {
	ID          string
	Title       string
	Notes       string
	AssigneeID  *string
	VehicleID   *string
	DueAt       *time.Time
	Status      Status
	// CreatedBy goes NULL when the creating account is deleted.
	CreatedBy   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// CreateParams enumerates the fields for creating a task.
type CreateParams struct {
	Title      string
	Notes      string
	AssigneeID *string
	VehicleID  *string
	DueAt      *time.Time
	CreatedBy  string
}

// ListFilters narrows List results.
type ListFilters struct {
	AssigneeID string
	Status     Status
}
