package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
)

// TxBeginner starts a database transaction. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MatchWriter persists a match and its location history inside a transaction.
type MatchWriter interface {
	RecordMatch(ctx context.Context, tx pgx.Tx, p *models.RecordMatchParams) (*models.Match, error)
}

// MatchRecorder commits one accepted match, with its location history entry when
// the sighting has geo, in its own transaction.
type MatchRecorder struct {
	db      TxBeginner
	matches MatchWriter
}

// NewMatchRecorder creates a MatchRecorder.
func NewMatchRecorder(db TxBeginner, matches MatchWriter) *MatchRecorder {
	return &MatchRecorder{db: db, matches: matches}
}

// Record persists p atomically. Every failure is a *huberrors.PersistenceError and
// leaves nothing behind.
func (r *MatchRecorder) Record(ctx context.Context, p models.RecordMatchParams) (*models.Match, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, huberrors.NewPersistenceError("begin match transaction", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	match, err := r.matches.RecordMatch(ctx, tx, &p)
	if err != nil {
		return nil, huberrors.NewPersistenceError("record match", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, huberrors.NewPersistenceError("commit match", err)
	}

	return match, nil
}
