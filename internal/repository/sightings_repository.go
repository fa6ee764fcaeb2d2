package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
)

const sightingColumns = `id, file_path, file_type, content_type, latitude, longitude, location_name,
	uploaded_by, uploaded_at, processed, processed_at`

// SightingsRepository handles data access for sightings.
type SightingsRepository struct {
	db *pgxpool.Pool
}

// NewSightingsRepository creates a new sightings repository.
func NewSightingsRepository(db *pgxpool.Pool) *SightingsRepository {
	return &SightingsRepository{db: db}
}

func scanSighting(row pgx.Row) (*models.Sighting, error) {
	var (
		s            models.Sighting
		lat, lon     *float64
		locationName *string
	)

	err := row.Scan(
		&s.ID, &s.MediaPath, &s.MediaKind, &s.ContentType, &lat, &lon, &locationName,
		&s.UploadedBy, &s.UploadedAt, &s.Processed, &s.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat != nil && lon != nil {
		s.Geo = &models.Geo{Latitude: *lat, Longitude: *lon, LocationName: locationName}
	}

	return &s, nil
}

func geoColumns(geo *models.Geo) (lat, lon *float64, name *string) {
	if geo == nil {
		return nil, nil, nil
	}

	return &geo.Latitude, &geo.Longitude, geo.LocationName
}

// Create inserts a new unprocessed sighting.
func (r *SightingsRepository) Create(ctx context.Context, req *models.CreateSightingRequest) (*models.Sighting, error) {
	return r.create(ctx, r.db, req)
}

// CreateTx inserts a new unprocessed sighting inside tx.
func (r *SightingsRepository) CreateTx(ctx context.Context, tx pgx.Tx, req *models.CreateSightingRequest) (*models.Sighting, error) {
	return r.create(ctx, tx, req)
}

func (r *SightingsRepository) create(ctx context.Context, q DBTX, req *models.CreateSightingRequest) (*models.Sighting, error) {
	lat, lon, name := geoColumns(req.Geo)

	query := `
		INSERT INTO sightings (file_path, file_type, content_type, latitude, longitude, location_name, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + sightingColumns

	s, err := scanSighting(q.QueryRow(ctx, query,
		req.MediaPath, req.MediaKind, req.ContentType, lat, lon, name, req.UploadedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create sighting: %w", err)
	}

	return s, nil
}

// Get retrieves a single sighting by ID.
func (r *SightingsRepository) Get(ctx context.Context, id uuid.UUID) (*models.Sighting, error) {
	query := `SELECT ` + sightingColumns + ` FROM sightings WHERE id = $1`

	s, err := scanSighting(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("sighting", "sighting not found")
		}

		return nil, fmt.Errorf("failed to get sighting: %w", err)
	}

	return s, nil
}

// List retrieves sightings, newest first.
func (r *SightingsRepository) List(ctx context.Context, filters *models.ListSightingsFilters) ([]models.Sighting, error) {
	query := `SELECT ` + sightingColumns + ` FROM sightings`

	var args []any
	if filters.Processed != nil {
		args = append(args, *filters.Processed)
		query += " WHERE processed = $1"
	}

	query += " ORDER BY uploaded_at DESC"
	query, args = appendPaging(query, args, filters.Limit, filters.Offset)

	return r.query(ctx, query, args...)
}

// ListUnprocessed returns sightings still waiting for a completed run, oldest first.
func (r *SightingsRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.Sighting, error) {
	query := `SELECT ` + sightingColumns + ` FROM sightings WHERE processed = FALSE ORDER BY uploaded_at ASC`
	query, args := appendPaging(query, nil, limit, 0)

	return r.query(ctx, query, args...)
}

func (r *SightingsRepository) query(ctx context.Context, query string, args ...any) ([]models.Sighting, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sightings: %w", err)
	}
	defer rows.Close()

	sightings := []models.Sighting{}
	for rows.Next() {
		s, err := scanSighting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		sightings = append(sightings, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sightings: %w", err)
	}

	return sightings, nil
}

// MarkProcessed sets processed and stamps processed_at.
func (r *SightingsRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		`UPDATE sightings SET processed = TRUE, processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark sighting processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("sighting", "sighting not found")
	}

	return nil
}

// ResetProcessedTx clears the processed flag inside tx so the sighting can be run again.
func (r *SightingsRepository) ResetProcessedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Sighting, error) {
	query := `
		UPDATE sightings SET processed = FALSE, processed_at = NULL
		WHERE id = $1
		RETURNING ` + sightingColumns

	s, err := scanSighting(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("sighting", "sighting not found")
		}

		return nil, fmt.Errorf("failed to reset sighting: %w", err)
	}

	return s, nil
}
