package vehicle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput signals a create or sale submission that fails validation.
var ErrInvalidInput = errors.New("vehicle: invalid input")

// Service exposes business-level vehicle operations over the repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates and inserts a new vehicle.
func (s *Service) Create(ctx context.Context, params CreateParams) (Vehicle, error) {
	if len(params.VIN) != 17 {
		return Vehicle{}, fmt.Errorf("%w: vin must be 17 characters", ErrInvalidInput)
	}
	currentYear := s.now().Year()
	if params.Year < 1950 || params.Year > currentYear+1 {
		return Vehicle{}, fmt.Errorf("%w: year %d out of range", ErrInvalidInput, params.Year)
	}
	if params.Make == "" || params.Model == "" {
		return Vehicle{}, fmt.Errorf("%w: make and model are required", ErrInvalidInput)
	}
	if params.BoughtCents != nil && *params.BoughtCents < 0 {
		return Vehicle{}, fmt.Errorf("%w: negative purchase price", ErrInvalidInput)
	}
	return s.repo.Create(ctx, params)
}

// GetByID returns one vehicle.
func (s *Service) GetByID(ctx context.Context, id string) (Vehicle, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns vehicles matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Vehicle, int, error) {
	return s.repo.List(ctx, filters)
}

// ListInventory returns the active listing.
func (s *Service) ListInventory(ctx context.Context) ([]Vehicle, error) {
	return s.repo.ListInventory(ctx)
}

// Sell records a completed sale.
func (s *Service) Sell(ctx context.Context, params SaleParams) (Vehicle, error) {
	if params.VehicleID == "" {
		return Vehicle{}, fmt.Errorf("%w: missing vehicle id", ErrInvalidInput)
	}
	if params.SoldCents <= 0 {
		return Vehicle{}, fmt.Errorf("%w: sale price must be positive", ErrInvalidInput)
	}
	if params.BuyerName == "" {
		return Vehicle{}, fmt.Errorf("%w: buyer name required", ErrInvalidInput)
	}
	if params.SoldDate.IsZero() {
		params.SoldDate = s.now()
	}
	return s.repo.MarkSold(ctx, params)
}
