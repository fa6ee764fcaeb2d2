package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/jobs"
	"github.com/reunite/hub/internal/models"
)

const defaultListLimit = 100

// SightingsRepository defines the sightings data access used by the service.
type SightingsRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, req *models.CreateSightingRequest) (*models.Sighting, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Sighting, error)
	List(ctx context.Context, filters *models.ListSightingsFilters) ([]models.Sighting, error)
	ResetProcessedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Sighting, error)
}

// SubmitSightingRequest describes stored media to turn into a sighting.
type SubmitSightingRequest struct {
	MediaPath   string
	ContentType string
	Geo         *models.Geo
	UploadedBy  *uuid.UUID
}

// SightingsService is the trigger surface of the processing pipeline.
type SightingsService struct {
	db   TxBeginner
	repo SightingsRepository
	jobs jobs.JobInserter
}

// NewSightingsService creates a SightingsService.
func NewSightingsService(db TxBeginner, repo SightingsRepository, inserter jobs.JobInserter) *SightingsService {
	return &SightingsService{db: db, repo: repo, jobs: inserter}
}

// SubmitSighting records a sighting and schedules its processing run in one
// transaction. Unsupported content types are rejected before anything is written.
func (s *SightingsService) SubmitSighting(ctx context.Context, req SubmitSightingRequest) (*models.Sighting, error) {
	kind, ok := models.MediaKindForContentType(req.ContentType)
	if !ok {
		return nil, huberrors.NewValidationError("file", fmt.Sprintf("unsupported content type %q", req.ContentType))
	}

	if err := validateGeo(req.Geo); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	sighting, err := s.repo.CreateTx(ctx, tx, &models.CreateSightingRequest{
		MediaPath:   req.MediaPath,
		MediaKind:   kind,
		ContentType: req.ContentType,
		Geo:         req.Geo,
		UploadedBy:  req.UploadedBy,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.jobs.InsertSightingJobTx(ctx, tx, jobs.SightingProcessingArgs{SightingID: sighting.ID}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sighting: %w", err)
	}

	return sighting, nil
}

// ReprocessSighting resets the processed flag and schedules a new run. It returns a
// ConflictError, and changes nothing, while a run for the sighting is still active.
func (s *SightingsService) ReprocessSighting(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := s.repo.ResetProcessedTx(ctx, tx, id); err != nil {
		return err
	}

	inserted, err := s.jobs.InsertSightingJobTx(ctx, tx, jobs.SightingProcessingArgs{SightingID: id})
	if err != nil {
		return err
	}

	if !inserted {
		return huberrors.NewConflictError("sighting is already being processed")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reprocess: %w", err)
	}

	return nil
}

// GetSighting retrieves a single sighting by ID.
func (s *SightingsService) GetSighting(ctx context.Context, id uuid.UUID) (*models.Sighting, error) {
	return s.repo.Get(ctx, id)
}

// ListSightings lists sightings, newest first.
func (s *SightingsService) ListSightings(
	ctx context.Context, filters *models.ListSightingsFilters,
) (*models.ListSightingsResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}

	sightings, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &models.ListSightingsResponse{Data: sightings, Limit: filters.Limit, Offset: filters.Offset}, nil
}

func validateGeo(geo *models.Geo) error {
	if geo == nil {
		return nil
	}

	if !(geo.Latitude >= -90 && geo.Latitude <= 90) {
		return huberrors.NewValidationError("latitude", "latitude must be between -90 and 90")
	}

	if !(geo.Longitude >= -180 && geo.Longitude <= 180) {
		return huberrors.NewValidationError("longitude", "longitude must be between -180 and 180")
	}

	return nil
}
