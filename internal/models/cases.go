package models

import (
	"time"

	"github.com/google/uuid"
)

// Case represents a registered missing person.
// FaceEmbedding holds the codec-encoded enrollment embedding and is never serialized.
type Case struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Address       *string    `json:"address,omitempty"`
	AadhaarHash   *string    `json:"-"`
	Email         *string    `json:"email,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	PhotoPath     string     `json:"photo_path"`
	FaceEmbedding []byte     `json:"-"`
	IsFound       bool       `json:"is_found"`
	FoundAt       *time.Time `json:"found_at,omitempty"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	OwnerEmail    string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateCaseRequest represents the form fields of a new case.
type CreateCaseRequest struct {
	Name          string  `form:"name" validate:"required,no_null_bytes,min=1,max=255"`
	Address       *string `form:"address" validate:"omitempty,no_null_bytes,max=1000"`
	AadhaarNumber *string `form:"aadhaar_number" validate:"omitempty,numeric,len=12"`
	Email         *string `form:"email" validate:"omitempty,email,max=255"`
	Phone         *string `form:"phone" validate:"omitempty,no_null_bytes,max=32"`
}

// NewCase holds the fields persisted for a new case.
type NewCase struct {
	Name          string
	Address       *string
	AadhaarHash   *string
	Email         *string
	Phone         *string
	PhotoPath     string
	FaceEmbedding []byte
	CreatedBy     uuid.UUID
}

// UpdateCaseRequest represents the request to update a case. Nil fields are left unchanged.
type UpdateCaseRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,no_null_bytes,min=1,max=255"`
	Address       *string `json:"address,omitempty" validate:"omitempty,no_null_bytes,max=1000"`
	AadhaarNumber *string `json:"aadhaar_number,omitempty" validate:"omitempty,numeric,len=12"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,no_null_bytes,max=32"`
}

// CaseUpdate holds the column changes applied by an update. Nil fields are left unchanged.
type CaseUpdate struct {
	Name        *string
	Address     *string
	AadhaarHash *string
	Email       *string
	Phone       *string
}

// ListCasesFilters represents filters for listing cases.
type ListCasesFilters struct {
	CreatedBy *uuid.UUID `form:"-"`
	IsFound   *bool      `form:"is_found"`
	Limit     int        `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset    int        `form:"offset" validate:"omitempty,min=0"`
}

// ListCasesResponse represents the response for listing cases.
type ListCasesResponse struct {
	Data   []Case `json:"data"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// RegistryEntry is one active case eligible for matching.
type RegistryEntry struct {
	CaseID    uuid.UUID
	Embedding []byte
	Active    bool
	UpdatedAt time.Time
}
