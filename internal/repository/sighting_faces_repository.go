package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/reunite/hub/internal/models"
)

// SightingFacesRepository stores every extracted face embedding for retroactive matching.
type SightingFacesRepository struct {
	db *pgxpool.Pool
}

// NewSightingFacesRepository creates a new sighting faces repository.
func NewSightingFacesRepository(db *pgxpool.Pool) *SightingFacesRepository {
	return &SightingFacesRepository{db: db}
}

// Insert stores one face.
func (r *SightingFacesRepository) Insert(ctx context.Context, face *models.SightingFace) (uuid.UUID, error) {
	var id uuid.UUID

	err := r.db.QueryRow(ctx, `
		INSERT INTO sighting_faces (sighting_id, frame_index, face_index, artifact_path, strategy_version, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, face.SightingID, face.FrameIndex, face.FaceIndex, face.ArtifactPath, int16(face.StrategyVersion),
		pgvector.NewVector(face.Embedding),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert sighting face: %w", err)
	}

	return id, nil
}

// FindSimilar returns stored faces of the same strategy and dimension whose match
// score (1 - cosine distance / 2) is at least minScore, best first.
func (r *SightingFacesRepository) FindSimilar(
	ctx context.Context, probe []float32, version byte, minScore float64, limit int,
) ([]models.SimilarFace, error) {
	query, args := appendPaging(`
		SELECT id, sighting_id, frame_index, face_index, artifact_path, strategy_version, embedding, score
		FROM (
			SELECT *, 1 - (embedding <=> $1) / 2 AS score
			FROM sighting_faces
			WHERE strategy_version = $2 AND vector_dims(embedding) = $3
		) scored
		WHERE score >= $4 AND score <> 'NaN'::float8
		ORDER BY score DESC`,
		[]any{pgvector.NewVector(probe), int16(version), len(probe), minScore}, limit, 0)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find similar faces: %w", err)
	}

	faces, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SimilarFace, error) {
		var (
			f       models.SimilarFace
			vec     pgvector.Vector
			version int16
		)

		err := row.Scan(&f.ID, &f.SightingID, &f.FrameIndex, &f.FaceIndex, &f.ArtifactPath, &version, &vec, &f.Score)
		f.StrategyVersion = byte(version)
		f.Embedding = vec.Slice()
		f.Score = min(max(f.Score, 0), 1)

		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan similar faces: %w", err)
	}

	return faces, nil
}
