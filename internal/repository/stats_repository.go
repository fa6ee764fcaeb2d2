package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reunite/hub/internal/models"
)

// StatsRepository computes the admin dashboard counters.
type StatsRepository struct {
	db *pgxpool.Pool
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// Get returns the current counters.
func (r *StatsRepository) Get(ctx context.Context) (*models.Stats, error) {
	var s models.Stats

	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM missing_person_cases),
			(SELECT COUNT(*) FROM missing_person_cases WHERE is_found = FALSE),
			(SELECT COUNT(*) FROM missing_person_cases WHERE is_found = TRUE),
			(SELECT COUNT(*) FROM sightings),
			(SELECT COUNT(*) FROM matches),
			(SELECT COUNT(*) FROM matches WHERE verified = FALSE)
	`).Scan(&s.TotalCases, &s.ActiveCases, &s.FoundCases, &s.TotalSightings, &s.TotalMatches, &s.PendingMatches)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &s, nil
}
