package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that owns cases and authenticates with an API key.
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Phone      *string   `json:"phone,omitempty"`
	IsAdmin    bool      `json:"is_admin"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateUserRequest holds the fields persisted for a new user.
type CreateUserRequest struct {
	Email      string
	Name       string
	Phone      *string
	IsAdmin    bool
	APIKeyHash string
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalCases     int64 `json:"total_cases"`
	ActiveCases    int64 `json:"active_cases"`
	FoundCases     int64 `json:"found_cases"`
	TotalSightings int64 `json:"total_sightings"`
	TotalMatches   int64 `json:"total_matches"`
	PendingMatches int64 `json:"pending_matches"`
}
