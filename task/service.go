package task

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidInput signals a task submission that fails validation.
var ErrInvalidInput = errors.New("task: invalid input")

// Store abstracts the repository for the service and HTTP tests.
type Store interface {
	Create(ctx context.Context, params CreateParams) (Record, error)
	List(ctx context.Context, filters ListFilters) ([]Record, error)
	Complete(ctx context.Context, taskID string) (Record, error)
	Delete(ctx context.Context, taskID string) error
}

type Service struct {
	repo Store
}

func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Record, error) {
	if params.Title == "" {
		return Record{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if params.CreatedBy == "" {
		return Record{}, fmt.Errorf("%w: missing creator", ErrInvalidInput)
	}
	return s.repo.Create(ctx, params)
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Record, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Complete(ctx context.Context, taskID string) (Record, error) {
	return s.repo.Complete(ctx, taskID)
}

func (s *Service) Delete(ctx context.Context, taskID string) error {
	return s.repo.Delete(ctx, taskID)
}
