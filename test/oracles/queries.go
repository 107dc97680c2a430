package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_pending_per_vehicle",
			SQL: `SELECT vehicle_id, COUNT(*) FROM arb_records
                  WHERE outcome = 'pending'
                  GROUP BY vehicle_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_terminal_marks_resolved",
			SQL: `SELECT id, outcome, resolved_at FROM arb_records
                  WHERE (outcome <> 'pending' AND resolved_at IS NULL)
                     OR (outcome = 'pending' AND resolved_at IS NOT NULL)`,
		},
		{
			Name: "O3_processed_has_audit_event",
			SQL: `SELECT r.id FROM arb_records r
                  WHERE r.outcome <> 'pending'
                    AND NOT EXISTS (
                        SELECT 1 FROM arb_events e
                        WHERE e.record_id = r.id AND e.type = 'ARB_PROCESSED')`,
		},
		{
			Name: "O4_processed_exactly_once",
			SQL: `SELECT record_id, COUNT(*) FROM arb_events
                  WHERE type = 'ARB_PROCESSED'
                  GROUP BY record_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_arb_status_backed_by_pending",
			SQL: `SELECT v.id FROM vehicles v
                  WHERE v.status = 'arb'
                    AND NOT EXISTS (
                        SELECT 1 FROM arb_records r
                        WHERE r.vehicle_id = v.id AND r.outcome = 'pending')`,
		},
		{
			Name: "O6_sold_fields_consistent",
			SQL: `SELECT id, status FROM vehicles
                  WHERE status = 'sold' AND (sold_cents IS NULL OR buyer_name IS NULL)`,
		},
		{
			Name: "O7_financials_never_negative",
			SQL: `SELECT id, expense_cents, adjustment_cents FROM vehicles
                  WHERE expense_cents < 0 OR adjustment_cents < 0`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and a sample
// row) or an empty name when all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
