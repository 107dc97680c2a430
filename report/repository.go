package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested vehicle does not exist.
var ErrNotFound = errors.New("report: not found")

// Repository provides read-only access to the financial projections.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profitColumns = `
	v.id, v.vin, v.stock_number, v.year, v.make, v.model, v.status::text,
	v.bought_cents, v.sold_cents, v.expense_cents, v.adjustment_cents,
	COALESCE(v.sold_cents, 0) - COALESCE(v.bought_cents, 0) - v.expense_cents + v.adjustment_cents,
	v.sold_date`

// VehicleProfit returns the financial projection for one vehicle.
func (r *Repository) VehicleProfit(ctx context.Context, vehicleID string) (VehicleProfit, error) {
	query := `SELECT ` + profitColumns + ` FROM vehicles v WHERE v.id = $1`

	row, err := scanProfit(r.pool.QueryRow(ctx, query, vehicleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VehicleProfit{}, ErrNotFound
		}
		return VehicleProfit{}, fmt.Errorf("report: vehicle profit: %w", err)
	}
	return row, nil
}

// SoldProfits lists the projection for every sold or completed vehicle,
// newest sale first.
func (r *Repository) SoldProfits(ctx context.Context, limit int) ([]VehicleProfit, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + profitColumns + `
		FROM vehicles v
		WHERE v.status IN ('sold', 'complete')
		ORDER BY v.sold_date DESC NULLS LAST
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("report: sold profits: %w", err)
	}
	defer rows.Close()

	out := make([]VehicleProfit, 0, limit)
	for rows.Next() {
		row, err := scanProfit(rows)
		if err != nil {
			return nil, fmt.Errorf("report: scan profit: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate profits: %w", err)
	}
	return out, nil
}

// MonthlySummaries aggregates sales and arbitration activity per month,
// newest month first.
func (r *Repository) MonthlySummaries(ctx context.Context, months int) ([]MonthlySummary, error) {
	if months <= 0 || months > 36 {
		months = 12
	}

	query := `
		SELECT to_char(date_trunc('month', v.sold_date), 'YYYY-MM') AS month,
		       COUNT(*) AS vehicles_sold,
		       COALESCE(SUM(v.sold_cents), 0),
		       COALESCE(SUM(v.expense_cents), 0),
		       COALESCE(SUM(COALESCE(v.sold_cents,0) - COALESCE(v.bought_cents,0) - v.expense_cents + v.adjustment_cents), 0),
		       (SELECT COUNT(*) FROM arb_records r JOIN vehicles vv ON vv.id = r.vehicle_id
		         WHERE date_trunc('month', r.created_at) = date_trunc('month', v.sold_date)),
		       (SELECT COUNT(*) FROM arb_records r
		         WHERE r.outcome = 'pending'
		           AND date_trunc('month', r.created_at) = date_trunc('month', v.sold_date))
		FROM vehicles v
		WHERE v.status IN ('sold', 'complete') AND v.sold_date IS NOT NULL
		GROUP BY date_trunc('month', v.sold_date)
		ORDER BY date_trunc('month', v.sold_date) DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, months)
	if err != nil {
		return nil, fmt.Errorf("report: monthly summaries: %w", err)
	}
	defer rows.Close()

	out := make([]MonthlySummary, 0, months)
	for rows.Next() {
		var s MonthlySummary
		if err := rows.Scan(
			&s.Month,
			&s.VehiclesSold,
			&s.RevenueCents,
			&s.ExpenseCents,
			&s.NetProfitCents,
			&s.ArbCasesOpened,
			&s.ArbCasesPending,
		); err != nil {
			return nil, fmt.Errorf("report: scan summary: %w", err)
		}
		if s.VehiclesSold > 0 {
			s.AvgProfitCents = s.NetProfitCents / int64(s.VehiclesSold)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate summaries: %w", err)
	}
	return out, nil
}

func scanProfit(row pgx.Row) (VehicleProfit, error) {
	var p VehicleProfit
	err := row.Scan(
		&p.VehicleID,
		&p.VIN,
		&p.StockNumber,
		&p.Year,
		&p.Make,
		&p.Model,
		&p.Status,
		&p.BoughtCents,
		&p.SoldCents,
		&p.ExpenseCents,
		&p.AdjustmentCents,
		&p.NetProfitCents,
		&p.SoldDate,
	)
	if err != nil {
		return VehicleProfit{}, err
	}
	return p, nil
}
