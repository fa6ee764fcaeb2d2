package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
)

const uniqueViolation = "23505"

// UsersRepository handles data access for user accounts.
type UsersRepository struct {
	db *pgxpool.Pool
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *pgxpool.Pool) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create inserts a new user. A duplicate email is a ConflictError.
func (r *UsersRepository) Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	var u models.User

	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, name, phone, is_admin, api_key_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, name, phone, is_admin, api_key_hash, created_at
	`, req.Email, req.Name, req.Phone, req.IsAdmin, req.APIKeyHash,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.IsAdmin, &u.APIKeyHash, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, huberrors.NewConflictError("user with this email already exists")
		}

		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &u, nil
}

// GetByAPIKeyHash looks up the user owning an API key.
func (r *UsersRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error) {
	var u models.User

	err := r.db.QueryRow(ctx, `
		SELECT id, email, name, phone, is_admin, api_key_hash, created_at
		FROM users WHERE api_key_hash = $1
	`, hash).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.IsAdmin, &u.APIKeyHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("user", "user not found")
		}

		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}
