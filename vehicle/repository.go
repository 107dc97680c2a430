package vehicle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested vehicle does not exist.
	ErrNotFound = errors.New("vehicle: not found")
	// ErrDuplicateVIN signals a vehicle with this VIN is already on the books.
	ErrDuplicateVIN = errors.New("vehicle: vin already exists")
	// ErrNotSellable signals a sale attempt on a vehicle that is not in inventory.
	ErrNotSellable = errors.New("vehicle: not available for sale")
)

// Repository handles data access for vehicles.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Vehicle, error)
	GetByID(ctx context.Context, id string) (Vehicle, error)
	List(ctx context.Context, filters ListFilters) ([]Vehicle, int, error)
	ListInventory(ctx context.Context) ([]Vehicle, error)
	MarkSold(ctx context.Context, params SaleParams) (Vehicle, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const vehicleColumns = `id, vin, stock_number, year, make, model, trim, status::text, title_status::text,
	bought_cents, sold_cents, expense_cents, adjustment_cents, buyer_name, sold_date, created_at, updated_at`

// Create inserts a new vehicle in pending status.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Vehicle, error) {
	insertSQL := `
		INSERT INTO vehicles (vin, stock_number, year, make, model, trim, status, title_status, bought_cents)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)
		RETURNING ` + vehicleColumns

	title := params.TitleStatus
	if title == "" {
		title = TitleAbsent
	}

	veh, err := scanVehicle(r.pool.QueryRow(ctx, insertSQL,
		params.VIN, params.StockNumber, params.Year, params.Make, params.Model, params.Trim, title, params.BoughtCents))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Vehicle{}, ErrDuplicateVIN
		}
		return Vehicle{}, fmt.Errorf("vehicle: create: %w", err)
	}
	return veh, nil
}

// GetByID fetches a vehicle by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Vehicle, error) {
	selectSQL := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`

	veh, err := scanVehicle(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vehicle{}, ErrNotFound
		}
		return Vehicle{}, fmt.Errorf("vehicle: query by id: %w", err)
	}
	return veh, nil
}

// List returns vehicles matching the filters plus a total count.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Vehicle, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	query := `SELECT ` + vehicleColumns + ` FROM vehicles`
	countQuery := `SELECT COUNT(*) FROM vehicles`
	args := []any{}
	if filters.Status != "" {
		query += ` WHERE status = $1`
		countQuery += ` WHERE status = $1`
		args = append(args, filters.Status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("vehicle: list: %w", err)
	}
	defer rows.Close()

	vehicles, err := collectVehicles(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("vehicle: count: %w", err)
	}
	return vehicles, total, nil
}

// ListInventory returns the active listing: everything except withdrawn and
// completed vehicles.
func (r *PGRepository) ListInventory(ctx context.Context) ([]Vehicle, error) {
	query := `SELECT ` + vehicleColumns + `
		FROM vehicles
		WHERE status NOT IN ('withdrawn', 'complete')
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vehicle: list inventory: %w", err)
	}
	defer rows.Close()

	return collectVehicles(rows)
}

// MarkSold records a sale with a conditional write: only inventory vehicles
// can be sold.
func (r *PGRepository) MarkSold(ctx context.Context, params SaleParams) (Vehicle, error) {
	updateSQL := `
		UPDATE vehicles
		SET status = 'sold',
		    sold_cents = $2,
		    buyer_name = $3,
		    sold_date = $4,
		    updated_at = now()
		WHERE id = $1 AND status = 'inventory'
		RETURNING ` + vehicleColumns

	veh, err := scanVehicle(r.pool.QueryRow(ctx, updateSQL,
		params.VehicleID, params.SoldCents, params.BuyerName, params.SoldDate))
	if err == nil {
		return veh, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Vehicle{}, fmt.Errorf("vehicle: mark sold: %w", err)
	}

	// Disambiguate: missing vs not in inventory.
	var status string
	if err := r.pool.QueryRow(ctx, `SELECT status::text FROM vehicles WHERE id = $1`, params.VehicleID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vehicle{}, ErrNotFound
		}
		return Vehicle{}, fmt.Errorf("vehicle: mark sold fetch: %w", err)
	}
	return Vehicle{}, ErrNotSellable
}

func collectVehicles(rows pgx.Rows) ([]Vehicle, error) {
	vehicles := make([]Vehicle, 0, 16)
	for rows.Next() {
		veh, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("vehicle: scan: %w", err)
		}
		vehicles = append(vehicles, veh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vehicle: iterate: %w", err)
	}
	return vehicles, nil
}

func scanVehicle(row pgx.Row) (Vehicle, error) {
	var v Vehicle
	err := row.Scan(
		&v.ID,
		&v.VIN,
		&v.StockNumber,
		&v.Year,
		&v.Make,
		&v.Model,
		&v.Trim,
		&v.Status,
		&v.TitleStatus,
		&v.BoughtCents,
		&v.SoldCents,
		&v.ExpenseCents,
		&v.AdjustmentCents,
		&v.BuyerName,
		&v.SoldDate,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return Vehicle{}, err
	}
	return v, nil
}
