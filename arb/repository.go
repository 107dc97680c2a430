package arb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository and the read projections backed by
// PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `id, vehicle_id, arb_type::text, outcome::text, adjustment_cents,
	transport_type, transport_location, transport_date, transport_cents,
	notes, created_by, created_at, updated_at, resolved_at`

// GetPendingForUpdate locks the vehicle's pending case for the duration of
// the transaction. When no pending case exists the error distinguishes
// between "everything already processed" and "no case / no vehicle".
func (r *PGRepository) GetPendingForUpdate(ctx context.Context, tx pgx.Tx, vehicleID string) (Record, error) {
	selectSQL := `SELECT ` + recordColumns + `
		FROM arb_records
		WHERE vehicle_id = $1 AND outcome = 'pending'
		FOR UPDATE`

	rec, err := scanRecord(tx.QueryRow(ctx, selectSQL, vehicleID))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("arb: lock pending case: %w", err)
	}

	var hasCases, hasVehicle bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM arb_records WHERE vehicle_id = $1),
		       EXISTS (SELECT 1 FROM vehicles WHERE id = $1)
	`, vehicleID).Scan(&hasCases, &hasVehicle); err != nil {
		return Record{}, fmt.Errorf("arb: classify missing case: %w", err)
	}
	if hasCases {
		return Record{}, ErrAlreadyProcessed
	}
	if !hasVehicle {
		return Record{}, ErrVehicleNotFound
	}
	return Record{}, ErrNotFound
}

// CloseOutcome moves a record out of pending with a conditional write. A
// concurrent submission that lost the race observes zero rows and gets
// ErrAlreadyProcessed.
func (r *PGRepository) CloseOutcome(ctx context.Context, tx pgx.Tx, params CloseParams) (Record, error) {
	updateSQL := `
		UPDATE arb_records
		SET outcome = $2::arb_outcome,
		    adjustment_cents = $3,
		    transport_type = $4,
		    transport_location = $5,
		    transport_date = $6,
		    transport_cents = $7,
		    notes = CASE WHEN $8 <> '' THEN $8 ELSE notes END,
		    resolved_at = now(),
		    updated_at = now()
		WHERE id = $1 AND outcome = 'pending'
		RETURNING ` + recordColumns

	rec, err := scanRecord(tx.QueryRow(ctx, updateSQL,
		params.RecordID,
		params.Outcome,
		params.AdjustmentCents,
		params.TransportType,
		params.TransportLocation,
		params.TransportDate,
		params.TransportCents,
		params.Notes,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrAlreadyProcessed
		}
		return Record{}, fmt.Errorf("arb: close outcome: %w", err)
	}
	return rec, nil
}

// ApplyVehicleEffects performs the vehicle-side mutation for an outcome (or
// parks the vehicle in arb status when a case opens).
func (r *PGRepository) ApplyVehicleEffects(ctx context.Context, tx pgx.Tx, effects VehicleEffects) error {
	var (
		updateSQL string
		args      []any
	)

	priorStatus := "inventory"
	if effects.ArbType == TypeSold {
		priorStatus = "sold"
	}

	switch effects.Outcome {
	case OutcomePending:
		updateSQL = `UPDATE vehicles SET status = 'arb', updated_at = now() WHERE id = $1`
		args = []any{effects.VehicleID}
	case OutcomeDenied:
		updateSQL = `UPDATE vehicles SET status = $2::vehicle_status, updated_at = now() WHERE id = $1`
		args = []any{effects.VehicleID, priorStatus}
	case OutcomePriceAdjustment:
		if effects.ArbType == TypeSold {
			// The adjustment is an expense against the completed sale.
			updateSQL = `UPDATE vehicles
				SET expense_cents = expense_cents + $2,
				    status = 'sold',
				    updated_at = now()
				WHERE id = $1`
		} else {
			// The adjustment reduces the recorded purchase cost.
			updateSQL = `UPDATE vehicles
				SET adjustment_cents = adjustment_cents + $2,
				    status = 'inventory',
				    updated_at = now()
				WHERE id = $1`
		}
		args = []any{effects.VehicleID, effects.AmountCents}
	case OutcomeBuyerWithdrew:
		// Sale reversed: transport cost becomes an expense and the vehicle
		// returns to the lot.
		updateSQL = `UPDATE vehicles
			SET expense_cents = expense_cents + $2,
			    sold_cents = NULL,
			    buyer_name = NULL,
			    sold_date = NULL,
			    status = 'inventory',
			    updated_at = now()
			WHERE id = $1`
		args = []any{effects.VehicleID, effects.AmountCents}
	case OutcomeWithdrawn:
		// Hard withdrawal: purchase information is gone for good.
		updateSQL = `UPDATE vehicles
			SET bought_cents = NULL,
			    adjustment_cents = 0,
			    status = 'withdrawn',
			    updated_at = now()
			WHERE id = $1`
		args = []any{effects.VehicleID}
	default:
		return fmt.Errorf("arb: no vehicle effect for outcome %q", effects.Outcome)
	}

	tag, err := tx.Exec(ctx, updateSQL, args...)
	if err != nil {
		return fmt.Errorf("arb: apply vehicle effects: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

// InsertPending creates a new pending case. The partial unique index on
// (vehicle_id) WHERE outcome = 'pending' rejects a second open case.
func (r *PGRepository) InsertPending(ctx context.Context, tx pgx.Tx, params OpenParams) (Record, error) {
	insertSQL := `
		INSERT INTO arb_records (vehicle_id, arb_type, outcome, notes, created_by)
		VALUES ($1, $2::arb_type, 'pending', $3, $4::uuid)
		RETURNING ` + recordColumns

	var createdBy any
	if params.CreatedBy != "" {
		createdBy = params.CreatedBy
	}

	rec, err := scanRecord(tx.QueryRow(ctx, insertSQL, params.VehicleID, params.ArbType, params.Notes, createdBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrPendingExists
		}
		return Record{}, fmt.Errorf("arb: insert pending: %w", err)
	}
	return rec, nil
}

// LockVehicleStatus locks the vehicle row and returns its current status.
func (r *PGRepository) LockVehicleStatus(ctx context.Context, tx pgx.Tx, vehicleID string) (string, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status::text FROM vehicles WHERE id = $1 FOR UPDATE`, vehicleID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrVehicleNotFound
		}
		return "", fmt.Errorf("arb: lock vehicle: %w", err)
	}
	return status, nil
}

// AppendEvent writes an immutable audit row in the caller's transaction.
func (r *PGRepository) AppendEvent(ctx context.Context, tx pgx.Tx, recordID, vehicleID, eventType string, actorID *string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("arb: marshal event payload: %w", err)
	}
	var actor any
	if actorID != nil && *actorID != "" {
		actor = *actorID
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO arb_events (record_id, vehicle_id, type, actor_id, payload)
		VALUES ($1, $2, $3, $4::uuid, $5::jsonb)
	`, recordID, vehicleID, eventType, actor, body); err != nil {
		return fmt.Errorf("arb: insert event: %w", err)
	}
	return nil
}

const caseColumns = `r.id, r.vehicle_id, r.arb_type::text, r.outcome::text, r.adjustment_cents,
	r.transport_type, r.transport_location, r.transport_date, r.transport_cents,
	r.notes, r.created_by, r.created_at, r.updated_at, r.resolved_at,
	v.vin, v.stock_number, v.year, v.make, v.model, v.status::text, v.buyer_name,
	u.username, u.full_name`

const caseJoins = `
	FROM arb_records r
	JOIN vehicles v ON v.id = r.vehicle_id
	LEFT JOIN users u ON u.id = r.created_by`

// List returns every case joined with vehicle and creator, pending first,
// then newest first.
func (r *PGRepository) List(ctx context.Context) ([]CaseView, error) {
	query := `SELECT ` + caseColumns + caseJoins + `
		ORDER BY (r.outcome = 'pending') DESC, r.created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("arb: list cases: %w", err)
	}
	defer rows.Close()

	return collectCases(rows)
}

// GetByID returns one case joined with vehicle and creator.
func (r *PGRepository) GetByID(ctx context.Context, recordID string) (CaseView, error) {
	query := `SELECT ` + caseColumns + caseJoins + ` WHERE r.id = $1`

	view, err := scanCase(r.pool.QueryRow(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CaseView{}, ErrNotFound
		}
		return CaseView{}, fmt.Errorf("arb: get case: %w", err)
	}
	return view, nil
}

// HistoryForVehicle returns the full chronological case history for one
// vehicle, newest first.
func (r *PGRepository) HistoryForVehicle(ctx context.Context, vehicleID string) ([]CaseView, error) {
	query := `SELECT ` + caseColumns + caseJoins + `
		WHERE r.vehicle_id = $1
		ORDER BY r.created_at DESC`

	rows, err := r.pool.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("arb: vehicle history: %w", err)
	}
	defer rows.Close()

	return collectCases(rows)
}

func collectCases(rows pgx.Rows) ([]CaseView, error) {
	views := make([]CaseView, 0, 8)
	for rows.Next() {
		view, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("arb: scan case: %w", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("arb: iterate cases: %w", err)
	}
	return views, nil
}

func scanCase(row pgx.Row) (CaseView, error) {
	var view CaseView
	err := row.Scan(
		&view.ID,
		&view.VehicleID,
		&view.ArbType,
		&view.Outcome,
		&view.AdjustmentCents,
		&view.TransportType,
		&view.TransportLocation,
		&view.TransportDate,
		&view.TransportCents,
		&view.Notes,
		&view.CreatedBy,
		&view.CreatedAt,
		&view.UpdatedAt,
		&view.ResolvedAt,
		&view.VIN,
		&view.StockNumber,
		&view.Year,
		&view.Make,
		&view.Model,
		&view.VehicleStatus,
		&view.BuyerName,
		&view.CreatorUsername,
		&view.CreatorFullName,
	)
	if err != nil {
		return CaseView{}, err
	}
	return view, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.VehicleID,
		&rec.ArbType,
		&rec.Outcome,
		&rec.AdjustmentCents,
		&rec.TransportType,
		&rec.TransportLocation,
		&rec.TransportDate,
		&rec.TransportCents,
		&rec.Notes,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.ResolvedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
