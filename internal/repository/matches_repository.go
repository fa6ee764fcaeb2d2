package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
)

const matchColumns = `id, case_id, sighting_id, confidence_score, matched_face_path, verified,
	verified_by, verified_at, created_at`

// MatchesRepository handles data access for matches and the location history written with them.
type MatchesRepository struct {
	db *pgxpool.Pool
}

// NewMatchesRepository creates a new matches repository.
func NewMatchesRepository(db *pgxpool.Pool) *MatchesRepository {
	return &MatchesRepository{db: db}
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match

	err := row.Scan(
		&m.ID, &m.CaseID, &m.SightingID, &m.ConfidenceScore, &m.MatchedFacePath, &m.Verified,
		&m.VerifiedBy, &m.VerifiedAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordMatch inserts the match and, when p carries a location, a location history
// entry referencing it. Both statements run on tx; the caller commits.
func (r *MatchesRepository) RecordMatch(ctx context.Context, tx pgx.Tx, p *models.RecordMatchParams) (*models.Match, error) {
	m, err := scanMatch(tx.QueryRow(ctx, `
		INSERT INTO matches (case_id, sighting_id, confidence_score, matched_face_path)
		VALUES ($1, $2, $3, $4)
		RETURNING `+matchColumns,
		p.CaseID, p.SightingID, p.Score, p.FacePath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert match: %w", err)
	}

	if p.Geo == nil {
		return m, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO location_history (case_id, match_id, latitude, longitude, location_name, confidence_score)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.CaseID, m.ID, p.Geo.Latitude, p.Geo.Longitude, p.Geo.LocationName, p.Score)
	if err != nil {
		return nil, fmt.Errorf("failed to insert location history: %w", err)
	}

	return m, nil
}

// Get retrieves a single match by ID.
func (r *MatchesRepository) Get(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	m, err := scanMatch(r.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("match", "match not found")
		}

		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return m, nil
}

// List retrieves matches with optional filters, newest first.
func (r *MatchesRepository) List(ctx context.Context, filters *models.ListMatchesFilters) ([]models.Match, error) {
	var (
		conditions []string
		args       []any
	)

	if filters.Verified != nil {
		args = append(args, *filters.Verified)
		conditions = append(conditions, fmt.Sprintf("verified = $%d", len(args)))
	}

	if filters.CaseID != nil {
		args = append(args, *filters.CaseID)
		conditions = append(conditions, fmt.Sprintf("case_id = $%d", len(args)))
	}

	query := `SELECT ` + matchColumns + ` FROM matches`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"
	query, args = appendPaging(query, args, filters.Limit, filters.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := []models.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return matches, nil
}

// ListBySighting returns every match recorded for a sighting.
func (r *MatchesRepository) ListBySighting(ctx context.Context, sightingID uuid.UUID) ([]models.Match, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE sighting_id = $1 ORDER BY confidence_score DESC`, sightingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Match, error) {
		m, err := scanMatch(row)
		if err != nil {
			return models.Match{}, err
		}

		return *m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan matches: %w", err)
	}

	return matches, nil
}

// Verify records an admin decision on a match.
func (r *MatchesRepository) Verify(ctx context.Context, id uuid.UUID, verified bool, by uuid.UUID) (*models.Match, error) {
	m, err := scanMatch(r.db.QueryRow(ctx, `
		UPDATE matches
		SET verified = $2,
			verified_by = CASE WHEN $2 THEN $3::uuid END,
			verified_at = CASE WHEN $2 THEN NOW() END
		WHERE id = $1
		RETURNING `+matchColumns,
		id, verified, by,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("match", "match not found")
		}

		return nil, fmt.Errorf("failed to verify match: %w", err)
	}

	return m, nil
}

// LocationHistoryRepository reads the geolocated trail of a case.
type LocationHistoryRepository struct {
	db *pgxpool.Pool
}

// NewLocationHistoryRepository creates a new location history repository.
func NewLocationHistoryRepository(db *pgxpool.Pool) *LocationHistoryRepository {
	return &LocationHistoryRepository{db: db}
}

// ListByCase returns the location history of a case, newest first.
func (r *LocationHistoryRepository) ListByCase(ctx context.Context, caseID uuid.UUID, limit int) ([]models.LocationHistoryEntry, error) {
	query, args := appendPaging(`
		SELECT id, case_id, match_id, latitude, longitude, location_name, confidence_score, recorded_at
		FROM location_history
		WHERE case_id = $1
		ORDER BY recorded_at DESC`, []any{caseID}, limit, 0)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list location history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LocationHistoryEntry, error) {
		var e models.LocationHistoryEntry
		err := row.Scan(&e.ID, &e.CaseID, &e.MatchID, &e.Latitude, &e.Longitude, &e.LocationName,
			&e.ConfidenceScore, &e.RecordedAt)

		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan location history: %w", err)
	}

	return entries, nil
}
