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

// caseSelect joins the owner so alerts can reach the account that filed the case.
const caseSelect = `
	SELECT c.id, c.name, c.address, c.aadhaar_hash, c.email, c.phone, c.photo_path,
		c.face_embedding, c.is_found, c.found_at, c.created_by, u.email, c.created_at, c.updated_at
	FROM missing_person_cases c
	JOIN users u ON u.id = c.created_by`

// CasesRepository handles data access for missing person cases.
type CasesRepository struct {
	db *pgxpool.Pool
}

// NewCasesRepository creates a new cases repository.
func NewCasesRepository(db *pgxpool.Pool) *CasesRepository {
	return &CasesRepository{db: db}
}

func scanCase(row pgx.Row) (*models.Case, error) {
	var c models.Case

	err := row.Scan(
		&c.ID, &c.Name, &c.Address, &c.AadhaarHash, &c.Email, &c.Phone, &c.PhotoPath,
		&c.FaceEmbedding, &c.IsFound, &c.FoundAt, &c.CreatedBy, &c.OwnerEmail, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func caseNotFound() error {
	return huberrors.NewNotFoundError("case", "case not found")
}

// ListActiveRegistry returns every case still missing that has an enrolled embedding.
func (r *CasesRepository) ListActiveRegistry(ctx context.Context) ([]models.RegistryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, face_embedding, updated_at
		FROM missing_person_cases
		WHERE is_found = FALSE AND face_embedding IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RegistryEntry, error) {
		e := models.RegistryEntry{Active: true}
		err := row.Scan(&e.CaseID, &e.Embedding, &e.UpdatedAt)

		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan registry: %w", err)
	}

	return entries, nil
}

// Create inserts a new case and returns it with the owner's email.
func (r *CasesRepository) Create(ctx context.Context, nc *models.NewCase) (*models.Case, error) {
	var id uuid.UUID

	err := r.db.QueryRow(ctx, `
		INSERT INTO missing_person_cases (name, address, aadhaar_hash, email, phone, photo_path, face_embedding, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, nc.Name, nc.Address, nc.AadhaarHash, nc.Email, nc.Phone, nc.PhotoPath, nc.FaceEmbedding, nc.CreatedBy).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	return r.Get(ctx, id)
}

// Get retrieves a single case by ID.
func (r *CasesRepository) Get(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c, err := scanCase(r.db.QueryRow(ctx, caseSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, caseNotFound()
		}

		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return c, nil
}

// List retrieves cases with optional filters, newest first.
func (r *CasesRepository) List(ctx context.Context, filters *models.ListCasesFilters) ([]models.Case, error) {
	var (
		conditions []string
		args       []any
	)

	if filters.CreatedBy != nil {
		args = append(args, *filters.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("c.created_by = $%d", len(args)))
	}

	if filters.IsFound != nil {
		args = append(args, *filters.IsFound)
		conditions = append(conditions, fmt.Sprintf("c.is_found = $%d", len(args)))
	}

	query := caseSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY c.created_at DESC"
	query, args = appendPaging(query, args, filters.Limit, filters.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	cases := []models.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}

	return cases, nil
}

// Update applies the non-nil fields of upd and bumps updated_at.
func (r *CasesRepository) Update(ctx context.Context, id uuid.UUID, upd *models.CaseUpdate) (*models.Case, error) {
	var (
		updates []string
		args    []any
	)

	set := func(column string, value *string) {
		if value != nil {
			args = append(args, *value)
			updates = append(updates, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}

	set("name", upd.Name)
	set("address", upd.Address)
	set("aadhaar_hash", upd.AadhaarHash)
	set("email", upd.Email)
	set("phone", upd.Phone)

	if len(updates) == 0 {
		return r.Get(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE missing_person_cases
		SET %s, updated_at = NOW()
		WHERE id = $%d
	`, strings.Join(updates, ", "), len(args))

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, caseNotFound()
	}

	return r.Get(ctx, id)
}

// Delete removes a case and, by cascade, its matches and location history.
// Returns the photo path so the caller can remove the file.
func (r *CasesRepository) Delete(ctx context.Context, id uuid.UUID) (string, error) {
	var photoPath string

	err := r.db.QueryRow(ctx, `DELETE FROM missing_person_cases WHERE id = $1 RETURNING photo_path`, id).Scan(&photoPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", caseNotFound()
		}

		return "", fmt.Errorf("failed to delete case: %w", err)
	}

	return photoPath, nil
}

// MarkFound flags a case as found, which removes it from the matching registry.
// Returns a ConflictError if the case is already found.
func (r *CasesRepository) MarkFound(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE missing_person_cases
		SET is_found = TRUE, found_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_found = FALSE
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark case found: %w", err)
	}

	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if result.RowsAffected() == 0 {
		return nil, huberrors.NewConflictError("case already marked as found")
	}

	return c, nil
}
