package models

import (
	"time"

	"github.com/google/uuid"
)

// Match is a recorded claim that a face in a sighting corresponds to a case.
type Match struct {
	ID              uuid.UUID  `json:"id"`
	CaseID          uuid.UUID  `json:"case_id"`
	SightingID      uuid.UUID  `json:"sighting_id"`
	ConfidenceScore float64    `json:"confidence_score"`
	MatchedFacePath string     `json:"matched_face_path"`
	Verified        bool       `json:"verified"`
	VerifiedBy      *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// LocationHistoryEntry is a geolocated sighting of a case, written with its match.
type LocationHistoryEntry struct {
	ID              uuid.UUID `json:"id"`
	CaseID          uuid.UUID `json:"case_id"`
	MatchID         uuid.UUID `json:"match_id"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	LocationName    *string   `json:"location_name,omitempty"`
	ConfidenceScore float64   `json:"confidence_score"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// RecordMatchParams holds everything persisted for one accepted match.
type RecordMatchParams struct {
	CaseID     uuid.UUID
	SightingID uuid.UUID
	Score      float64
	FacePath   string
	Geo        *Geo
}

// ListMatchesFilters represents filters for listing matches.
type ListMatchesFilters struct {
	Verified *bool      `form:"verified"`
	CaseID   *uuid.UUID `form:"case_id"`
	Limit    int        `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset   int        `form:"offset" validate:"omitempty,min=0"`
}

// ListMatchesResponse represents the response for listing matches.
type ListMatchesResponse struct {
	Data   []Match `json:"data"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// VerifyMatchRequest represents an admin decision on a match.
type VerifyMatchRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}

// SightingFace is one extracted face persisted for retroactive matching.
type SightingFace struct {
	ID              uuid.UUID
	SightingID      uuid.UUID
	FrameIndex      int
	FaceIndex       int
	ArtifactPath    string
	StrategyVersion byte
	Embedding       []float32
}

// SimilarFace is a stored sighting face scored against a probe.
type SimilarFace struct {
	SightingFace
	Score float64
}
