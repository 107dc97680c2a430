package arb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound signals the vehicle has no arbitration case at all.
	ErrNotFound = errors.New("arb: case not found")
	// ErrAlreadyProcessed signals the case already has a terminal outcome.
	ErrAlreadyProcessed = errors.New("arb: case already processed")
	// ErrPendingExists signals the vehicle already has an open case.
	ErrPendingExists = errors.New("arb: vehicle already has a pending case")
	// ErrVehicleNotFound signals the referenced vehicle does not exist.
	ErrVehicleNotFound = errors.New("arb: vehicle not found")
	// ErrWrongVehicleState signals a case opened against a vehicle whose
	// status does not match the case type.
	ErrWrongVehicleState = errors.New("arb: vehicle status does not allow this case type")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository defines the transactional data access required by the service.
// Every method runs inside the caller's transaction so the whole outcome
// application commits or rolls back as one unit.
type Repository interface {
	GetPendingForUpdate(ctx context.Context, tx pgx.Tx, vehicleID string) (Record, error)
	CloseOutcome(ctx context.Context, tx pgx.Tx, params CloseParams) (Record, error)
	ApplyVehicleEffects(ctx context.Context, tx pgx.Tx, effects VehicleEffects) error
	InsertPending(ctx context.Context, tx pgx.Tx, params OpenParams) (Record, error)
	LockVehicleStatus(ctx context.Context, tx pgx.Tx, vehicleID string) (string, error)
	AppendEvent(ctx context.Context, tx pgx.Tx, recordID, vehicleID, eventType string, actorID *string, payload map[string]any) error
}

// OpenParams enumerates the fields for opening a new case.
type OpenParams struct {
	VehicleID string
	ArbType   ArbType
	Notes     string
	CreatedBy string
}

// ProcessParams enumerates the outcome submission normalized for the service.
type ProcessParams struct {
	VehicleID         string
	ArbType           ArbType
	Outcome           Outcome
	AdjustmentCents   *int64
	TransportType     *string
	TransportLocation *string
	TransportDate     *time.Time
	TransportCents    *int64
	Notes             string
	ActorID           string
}

// CloseParams is the conditional write that moves a record out of pending.
type CloseParams struct {
	RecordID          string
	Outcome           Outcome
	AdjustmentCents   *int64
	TransportType     *string
	TransportLocation *string
	TransportDate     *time.Time
	TransportCents    *int64
	Notes             string
}

// VehicleEffects describes the vehicle-side mutation for a processed outcome.
type VehicleEffects struct {
	VehicleID string
	ArbType   ArbType
	Outcome   Outcome
	// AmountCents is the adjustment amount or transport cost, per outcome.
	AmountCents int64
}

// Service owns the arbitration workflow: opening cases and applying
// outcomes. Outcome application is the single authoritative pending→terminal
// transition.
type Service struct {
	pool TxBeginner
	repo Repository
}

func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{pool: pool, repo: repo}
}

// Open creates a new pending case and parks the vehicle in arb status.
// A sold case requires a sold vehicle, an inventory case an inventory
// vehicle. At most one pending case may exist per vehicle; the partial
// unique index backs this up and surfaces as ErrPendingExists.
func (s *Service) Open(ctx context.Context, params OpenParams) (Record, error) {
	if params.VehicleID == "" {
		return Record{}, fmt.Errorf("%w: missing vehicle id", ErrInvalidOutcome)
	}
	if params.ArbType != TypeSold && params.ArbType != TypeInventory {
		return Record{}, fmt.Errorf("%w: invalid arb type %q", ErrInvalidOutcome, params.ArbType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("arb: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := s.repo.LockVehicleStatus(ctx, tx, params.VehicleID)
	if err != nil {
		return Record{}, err
	}
	if (params.ArbType == TypeSold && status != "sold") ||
		(params.ArbType == TypeInventory && status != "inventory") {
		return Record{}, fmt.Errorf("%w: vehicle is %s", ErrWrongVehicleState, status)
	}

	rec, err := s.repo.InsertPending(ctx, tx, params)
	if err != nil {
		return Record{}, err
	}

	if err := s.repo.ApplyVehicleEffects(ctx, tx, VehicleEffects{
		VehicleID: params.VehicleID,
		ArbType:   params.ArbType,
		Outcome:   OutcomePending,
	}); err != nil {
		return Record{}, err
	}

	var actor *string
	if params.CreatedBy != "" {
		actor = &params.CreatedBy
	}
	if err := s.repo.AppendEvent(ctx, tx, rec.ID, params.VehicleID, "ARB_OPENED", actor, map[string]any{
		"arb_type": params.ArbType,
	}); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("arb: commit open: %w", err)
	}
	return rec, nil
}

// ProcessOutcome applies a terminal outcome to the vehicle's pending case:
// the record closes with a conditional write keyed on outcome = pending, the
// vehicle's status and financial fields change per the outcome table, and an
// audit event lands in the same transaction.
func (s *Service) ProcessOutcome(ctx context.Context, params ProcessParams) (Record, error) {
	if params.VehicleID == "" {
		return Record{}, fmt.Errorf("%w: missing vehicle id", ErrInvalidOutcome)
	}
	if err := ValidateOutcome(params.ArbType, params.Outcome, OutcomeInput{
		AdjustmentCents: params.AdjustmentCents,
		TransportCents:  params.TransportCents,
	}); err != nil {
		return Record{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("arb: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	pending, err := s.repo.GetPendingForUpdate(ctx, tx, params.VehicleID)
	if err != nil {
		return Record{}, err
	}
	if pending.ArbType != params.ArbType {
		return Record{}, fmt.Errorf("%w: case is %s, submission says %s", ErrInvalidOutcome, pending.ArbType, params.ArbType)
	}

	closed, err := s.repo.CloseOutcome(ctx, tx, CloseParams{
		RecordID:          pending.ID,
		Outcome:           params.Outcome,
		AdjustmentCents:   params.AdjustmentCents,
		TransportType:     params.TransportType,
		TransportLocation: params.TransportLocation,
		TransportDate:     params.TransportDate,
		TransportCents:    params.TransportCents,
		Notes:             params.Notes,
	})
	if err != nil {
		return Record{}, err
	}

	if err := s.repo.ApplyVehicleEffects(ctx, tx, VehicleEffects{
		VehicleID:   params.VehicleID,
		ArbType:     params.ArbType,
		Outcome:     params.Outcome,
		AmountCents: effectAmount(params),
	}); err != nil {
		return Record{}, err
	}

	var actor *string
	if params.ActorID != "" {
		actor = &params.ActorID
	}
	payload := map[string]any{
		"arb_type": params.ArbType,
		"outcome":  params.Outcome,
	}
	if params.AdjustmentCents != nil {
		payload["adjustment_cents"] = *params.AdjustmentCents
	}
	if params.TransportCents != nil {
		payload["transport_cents"] = *params.TransportCents
	}
	if err := s.repo.AppendEvent(ctx, tx, closed.ID, params.VehicleID, "ARB_PROCESSED", actor, payload); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("arb: commit outcome: %w", err)
	}
	return closed, nil
}

func effectAmount(params ProcessParams) int64 {
	switch params.Outcome {
	case OutcomePriceAdjustment:
		if params.AdjustmentCents != nil {
			return *params.AdjustmentCents
		}
	case OutcomeBuyerWithdrew:
		if params.TransportCents != nil {
			return *params.TransportCents
		}
	}
	return 0
}
