package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/embedding"
	"github.com/reunite/hub/internal/faces"
	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/jobs"
	"github.com/reunite/hub/internal/models"
)

const casePhotoDir = "cases"

// CasesRepository defines the cases data access used by the service.
type CasesRepository interface {
	Create(ctx context.Context, nc *models.NewCase) (*models.Case, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Case, error)
	List(ctx context.Context, filters *models.ListCasesFilters) ([]models.Case, error)
	Update(ctx context.Context, id uuid.UUID, upd *models.CaseUpdate) (*models.Case, error)
	Delete(ctx context.Context, id uuid.UUID) (string, error)
	MarkFound(ctx context.Context, id uuid.UUID) (*models.Case, error)
}

// PrimaryFaceExtractor returns the embedding of the dominant face in a photo.
type PrimaryFaceExtractor interface {
	ExtractPrimary(ctx context.Context, imagePath string) ([]float32, error)
}

// PhotoStore saves and removes uploaded case photos.
type PhotoStore interface {
	Save(ctx context.Context, dir, ext string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// CaseNotifier sends case lifecycle notices.
type CaseNotifier interface {
	NotifyCaseCreated(ctx context.Context, c *models.Case)
	NotifyPersonFound(ctx context.Context, c *models.Case)
}

// CreateCaseInput is a validated enrollment request with its photo.
type CreateCaseInput struct {
	Request   models.CreateCaseRequest
	CreatedBy uuid.UUID
	Photo     io.Reader
	PhotoExt  string
}

// CasesService handles enrollment and the lifecycle of missing person cases.
type CasesService struct {
	repo      CasesRepository
	extractor PrimaryFaceExtractor
	codec     embedding.Codec
	photos    PhotoStore
	notifier  CaseNotifier
	jobs      jobs.JobInserter
}

// NewCasesService creates a CasesService. codec must carry the version of the
// extractor's strategy.
func NewCasesService(
	repo CasesRepository,
	extractor PrimaryFaceExtractor,
	codec embedding.Codec,
	photos PhotoStore,
	notifier CaseNotifier,
	inserter jobs.JobInserter,
) *CasesService {
	return &CasesService{
		repo:      repo,
		extractor: extractor,
		codec:     codec,
		photos:    photos,
		notifier:  notifier,
		jobs:      inserter,
	}
}

// CreateCase stores the photo, enrolls the largest face in it and registers the case.
// A photo without a usable face is rejected with a ValidationError and removed.
func (s *CasesService) CreateCase(ctx context.Context, in CreateCaseInput) (*models.Case, error) {
	path, err := s.photos.Save(ctx, casePhotoDir, in.PhotoExt, in.Photo)
	if err != nil {
		return nil, fmt.Errorf("save photo: %w", err)
	}

	c, err := s.enroll(ctx, in, path)
	if err != nil {
		if delErr := s.photos.Delete(ctx, path); delErr != nil {
			slog.Warn("Failed to remove rejected case photo", "path", path, "error", delErr)
		}

		return nil, err
	}

	s.notifier.NotifyCaseCreated(ctx, c)

	if _, err := s.jobs.InsertCaseBackfillJob(ctx, jobs.CaseBackfillArgs{CaseID: c.ID}); err != nil {
		slog.Error("Failed to enqueue case backfill", "case_id", c.ID, "error", err)
	}

	return c, nil
}

func (s *CasesService) enroll(ctx context.Context, in CreateCaseInput, photoPath string) (*models.Case, error) {
	vec, err := s.extractor.ExtractPrimary(ctx, photoPath)
	if err != nil {
		switch {
		case errors.Is(err, faces.ErrNoFaceFound):
			return nil, huberrors.NewValidationError("photo", "no face detected in photo")
		case errors.Is(err, faces.ErrMediaUnreadable):
			return nil, huberrors.NewValidationError("photo", "photo could not be decoded")
		default:
			return nil, fmt.Errorf("extract face: %w", err)
		}
	}

	req := in.Request

	return s.repo.Create(ctx, &models.NewCase{
		Name:          strings.TrimSpace(req.Name),
		Address:       req.Address,
		AadhaarHash:   HashAadhaar(req.AadhaarNumber),
		Email:         req.Email,
		Phone:         req.Phone,
		PhotoPath:     photoPath,
		FaceEmbedding: s.codec.Encode(vec),
		CreatedBy:     in.CreatedBy,
	})
}

// GetCase retrieves a case. A non-nil owner restricts access to cases it created;
// other cases are reported as not found.
func (s *CasesService) GetCase(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*models.Case, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if owner != nil && c.CreatedBy != *owner {
		return nil, huberrors.NewNotFoundError("case", "case not found")
	}

	return c, nil
}

// ListCases lists cases, newest first.
func (s *CasesService) ListCases(ctx context.Context, filters *models.ListCasesFilters) (*models.ListCasesResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}

	cases, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &models.ListCasesResponse{Data: cases, Limit: filters.Limit, Offset: filters.Offset}, nil
}

// UpdateCase changes the contact details of a case.
func (s *CasesService) UpdateCase(
	ctx context.Context, id uuid.UUID, owner *uuid.UUID, req *models.UpdateCaseRequest,
) (*models.Case, error) {
	if _, err := s.GetCase(ctx, id, owner); err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, id, &models.CaseUpdate{
		Name:        req.Name,
		Address:     req.Address,
		AadhaarHash: HashAadhaar(req.AadhaarNumber),
		Email:       req.Email,
		Phone:       req.Phone,
	})
}

// DeleteCase removes a case with its matches and location history, then its photo.
func (s *CasesService) DeleteCase(ctx context.Context, id uuid.UUID, owner *uuid.UUID) error {
	if _, err := s.GetCase(ctx, id, owner); err != nil {
		return err
	}

	photoPath, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	if err := s.photos.Delete(ctx, photoPath); err != nil {
		slog.Warn("Failed to remove case photo", "case_id", id, "path", photoPath, "error", err)
	}

	return nil
}

// MarkFound closes a case, removing it from matching, and sends the found notice.
// Marking a found case again is a ConflictError and sends nothing.
func (s *CasesService) MarkFound(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c, err := s.repo.MarkFound(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyPersonFound(ctx, c)

	return c, nil
}

// HashAadhaar returns the hex SHA-256 of a trimmed Aadhaar number, or nil when absent.
func HashAadhaar(number *string) *string {
	if number == nil {
		return nil
	}

	n := strings.TrimSpace(*number)
	if n == "" {
		return nil
	}

	sum := sha256.Sum256([]byte(n))
	h := hex.EncodeToString(sum[:])

	return &h
}
