package actors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lotdesk/arb"
)

// OutcomeSubmitter races other submitters to close the pending case on one
// vehicle through the real service path. Losing the race surfaces as
// ErrAlreadyProcessed or ErrNotFound, both expected under contention; chaos
// makes connection errors expected too, so everything is swallowed.
func OutcomeSubmitter(ctx context.Context, svc *arb.Service, pool *pgxpool.Pool, vehicleID, actorID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var rawType string
		err := pool.QueryRow(ctx,
			`SELECT arb_type::text FROM arb_records WHERE vehicle_id = $1 AND outcome = 'pending'`,
			vehicleID).Scan(&rawType)
		if err != nil {
			if err == pgx.ErrNoRows {
				time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
				continue
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}

		arbType := arb.ArbType(rawType)
		params := arb.ProcessParams{
			VehicleID: vehicleID,
			ArbType:   arbType,
			ActorID:   actorID,
			Notes:     fmt.Sprintf("stress submission by %s", actorID),
		}
		switch rand.Intn(3) {
		case 0:
			params.Outcome = arb.OutcomeDenied
		case 1:
			params.Outcome = arb.OutcomePriceAdjustment
			amount := int64(10_000 + rand.Intn(90_000))
			params.AdjustmentCents = &amount
		default:
			if arbType == arb.TypeSold {
				params.Outcome = arb.OutcomeBuyerWithdrew
				cost := int64(20_000 + rand.Intn(50_000))
				params.TransportCents = &cost
			} else {
				params.Outcome = arb.OutcomeWithdrawn
			}
		}

		_, _ = svc.ProcessOutcome(ctx, params)
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// CaseOpener keeps feeding the mill: whenever the vehicle sits in a state
// that admits a case, it tries to open one. The partial unique index makes
// concurrent opens collide and one wins.
func CaseOpener(ctx context.Context, svc *arb.Service, pool *pgxpool.Pool, vehicleID, actorID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var status string
		if err := pool.QueryRow(ctx, `SELECT status::text FROM vehicles WHERE id = $1`, vehicleID).Scan(&status); err != nil {
			time.Sleep(30 * time.Millisecond)
			continue
		}

		var arbType arb.ArbType
		switch status {
		case "sold":
			arbType = arb.TypeSold
		case "inventory":
			arbType = arb.TypeInventory
		default:
			time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
			continue
		}

		_, _ = svc.Open(ctx, arb.OpenParams{
			VehicleID: vehicleID,
			ArbType:   arbType,
			Notes:     "stress case",
			CreatedBy: actorID,
		})
		time.Sleep(time.Duration(15+rand.Intn(25)) * time.Millisecond)
	}
}

// Restocker revives vehicles that reached a terminal lot state so the cycle
// never starves: withdrawn vehicles get re-listed and re-sold.
func Restocker(ctx context.Context, pool *pgxpool.Pool, vehicleID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, _ = pool.Exec(ctx, `
			UPDATE vehicles
			SET status = 'sold',
			    bought_cents = $2,
			    sold_cents = $3,
			    buyer_name = 'Stress Buyer',
			    sold_date = now(),
			    updated_at = now()
			WHERE id = $1 AND status = 'withdrawn'`,
			vehicleID, int64(800_000+rand.Intn(400_000)), int64(1_200_000+rand.Intn(400_000)))
		time.Sleep(time.Duration(100+rand.Intn(100)) * time.Millisecond)
	}
}

// StockEditor updates benign vehicle fields to add row-lock contention on
// the rows the processors lock.
func StockEditor(ctx context.Context, pool *pgxpool.Pool, vehicleID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, _ = pool.Exec(ctx,
			`UPDATE vehicles SET stock_number = $2, updated_at = now() WHERE id = $1`,
			vehicleID, fmt.Sprintf("S-%06d", rand.Intn(1_000_000)))
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}
