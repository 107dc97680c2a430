package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
	// ErrDuplicateUsername signals that the username is already taken.
	ErrDuplicateUsername = errors.New("auth: username already exists")
)

// Repository handles data access for accounts.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, userID string, params UpdateUserParams) (User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// CreateUserParams contains write parameters for creating accounts.
type CreateUserParams struct {
	Email        string
	Username     string
	FullName     string
	PasswordHash string
	Role         Role
	Status       Status
}

// UpdateUserParams mirrors UpdateUserRequest after normalization.
type UpdateUserParams struct {
	FullName *string
	Role     *Role
	Status   *Status
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed account repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, username, full_name, password_hash, role, status, created_at, updated_at`

// CreateUser inserts a new account with hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	insertSQL := `
		INSERT INTO users (email, username, full_name, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL,
		params.Email, params.Username, params.FullName, params.PasswordHash, params.Role, params.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "users_username_key" {
				return User{}, ErrDuplicateUsername
			}
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: create user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves an account by email address.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	selectSQL := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves an account by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	selectSQL := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by id: %w", err)
	}

	return user, nil
}

// ListUsers returns every account ordered by creation time.
func (r *PGRepository) ListUsers(ctx context.Context) ([]User, error) {
	selectSQL := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("auth: list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, 16)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("auth: scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: iterate users: %w", err)
	}
	return users, nil
}

// UpdateUser applies the non-nil fields and returns the updated account.
func (r *PGRepository) UpdateUser(ctx context.Context, userID string, params UpdateUserParams) (User, error) {
	updateSQL := `
		UPDATE users
		SET full_name = COALESCE($2, full_name),
		    role = COALESCE($3, role),
		    status = COALESCE($4, status),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	var roleArg, statusArg *string
	if params.Role != nil {
		v := string(*params.Role)
		roleArg = &v
	}
	if params.Status != nil {
		v := string(*params.Status)
		statusArg = &v
	}

	user, err := scanUser(r.pool.QueryRow(ctx, updateSQL, userID, params.FullName, roleArg, statusArg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: update user: %w", err)
	}

	return user, nil
}

// DeleteUser removes an account.
func (r *PGRepository) DeleteUser(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("auth: delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.FullName,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}
