package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/models"
)

const defaultHistoryLimit = 100

// StatsReader reads the dashboard summary.
type StatsReader interface {
	Get(ctx context.Context) (*models.Stats, error)
}

// MatchesRepository defines the match review data access used by admins.
type MatchesRepository interface {
	List(ctx context.Context, filters *models.ListMatchesFilters) ([]models.Match, error)
	Verify(ctx context.Context, id uuid.UUID, verified bool, by uuid.UUID) (*models.Match, error)
}

// LocationHistoryReader lists where a case has been sighted.
type LocationHistoryReader interface {
	ListByCase(ctx context.Context, caseID uuid.UUID, limit int) ([]models.LocationHistoryEntry, error)
}

// AdminService serves the admin dashboard: stats, match review and location history.
type AdminService struct {
	stats   StatsReader
	matches MatchesRepository
	history LocationHistoryReader
	cases   CasesRepository
}

// NewAdminService creates an AdminService.
func NewAdminService(
	stats StatsReader, matches MatchesRepository, history LocationHistoryReader, cases CasesRepository,
) *AdminService {
	return &AdminService{stats: stats, matches: matches, history: history, cases: cases}
}

// Stats returns case, sighting and match counts.
func (s *AdminService) Stats(ctx context.Context) (*models.Stats, error) {
	return s.stats.Get(ctx)
}

// ListMatches lists matches, newest first.
func (s *AdminService) ListMatches(
	ctx context.Context, filters *models.ListMatchesFilters,
) (*models.ListMatchesResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}

	matches, err := s.matches.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &models.ListMatchesResponse{Data: matches, Limit: filters.Limit, Offset: filters.Offset}, nil
}

// VerifyMatch records an admin decision on a match.
func (s *AdminService) VerifyMatch(ctx context.Context, id uuid.UUID, verified bool, by uuid.UUID) (*models.Match, error) {
	return s.matches.Verify(ctx, id, verified, by)
}

// LocationHistory returns the geolocated sightings of a case, newest first.
func (s *AdminService) LocationHistory(
	ctx context.Context, caseID uuid.UUID, limit int,
) ([]models.LocationHistoryEntry, error) {
	if _, err := s.cases.Get(ctx, caseID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return s.history.ListByCase(ctx, caseID, limit)
}
