package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrProtectedAdmin signals an attempt to modify or delete an admin account.
	ErrProtectedAdmin = errors.New("auth: admin accounts cannot be modified or deleted")
	// ErrRoleEscalation signals an attempt to grant the admin role through the
	// management routes.
	ErrRoleEscalation = errors.New("auth: role cannot be escalated to admin")
)

// ManageService implements the admin-only account management operations.
// Authorization (caller is admin) is enforced by the HTTP middleware; the
// admin-protection rules live here so they hold for every caller.
type ManageService struct {
	repo Repository
}

func NewManageService(repo Repository) *ManageService {
	return &ManageService{repo: repo}
}

// CreateUserRequest contains the fields an admin supplies when provisioning
// an account.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	Status   string `json:"status"`
}

// List returns all accounts.
func (s *ManageService) List(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// Get returns a single account by id.
func (s *ManageService) Get(ctx context.Context, userID string) (User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// Create provisions an account on behalf of an admin. The admin role cannot
// be granted this way.
func (s *ManageService) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	if len(req.Password) < 8 {
		return User{}, ErrWeakPassword
	}
	if req.Email == "" {
		return User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	role := Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleSeller
	}
	if role == RoleAdmin {
		return User{}, ErrRoleEscalation
	}
	if !isValidRole(role) {
		return User{}, fmt.Errorf("%w: invalid role %q", ErrInvalidInput, role)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("auth: hash password: %w", err)
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		// Fall back to the local part of the email.
		if at := strings.IndexByte(req.Email, '@'); at > 0 {
			username = req.Email[:at]
		} else {
			username = req.Email
		}
	}

	return s.repo.CreateUser(ctx, CreateUserParams{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     username,
		FullName:     req.FullName,
		PasswordHash: string(passwordHash),
		Role:         role,
		Status:       NormalizeStatus(req.Status),
	})
}

// Update applies a partial update to an account. Admin accounts are immutable
// through this path and no account can be promoted to admin.
func (s *ManageService) Update(ctx context.Context, userID string, req UpdateUserRequest) (User, error) {
	target, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if target.Role == RoleAdmin {
		return User{}, ErrProtectedAdmin
	}

	params := UpdateUserParams{FullName: req.FullName}
	if req.Role != nil {
		role := Role(strings.TrimSpace(string(*req.Role)))
		if role == RoleAdmin {
			return User{}, ErrRoleEscalation
		}
		if !isValidRole(role) {
			return User{}, fmt.Errorf("%w: invalid role %q", ErrInvalidInput, role)
		}
		params.Role = &role
	}
	if req.Status != nil {
		status := NormalizeStatus(*req.Status)
		params.Status = &status
	}

	return s.repo.UpdateUser(ctx, userID, params)
}

// Delete removes an account. Admin accounts cannot be deleted.
func (s *ManageService) Delete(ctx context.Context, userID string) error {
	target, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.Role == RoleAdmin {
		return ErrProtectedAdmin
	}
	return s.repo.DeleteUser(ctx, userID)
}
