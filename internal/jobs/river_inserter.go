package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// RiverJobInserter implements JobInserter using the River client.
type RiverJobInserter struct {
	client      *river.Client[pgx.Tx]
	maxAttempts int
}

// NewRiverJobInserter creates a River-based job inserter. maxAttempts <= 0 keeps River's default.
func NewRiverJobInserter(client *river.Client[pgx.Tx], maxAttempts int) *RiverJobInserter {
	return &RiverJobInserter{client: client, maxAttempts: maxAttempts}
}

// opts only carries MaxAttempts; queue and uniqueness come from the args' InsertOpts.
func (r *RiverJobInserter) opts() *river.InsertOpts {
	if r.maxAttempts <= 0 {
		return nil
	}

	return &river.InsertOpts{MaxAttempts: r.maxAttempts}
}

func (r *RiverJobInserter) InsertSightingJobTx(ctx context.Context, tx pgx.Tx, args SightingProcessingArgs) (bool, error) {
	res, err := r.client.InsertTx(ctx, tx, args, r.opts())

	return inserted(res, err, args.Kind())
}

func (r *RiverJobInserter) InsertSightingJob(ctx context.Context, args SightingProcessingArgs) (bool, error) {
	res, err := r.client.Insert(ctx, args, r.opts())

	return inserted(res, err, args.Kind())
}

func (r *RiverJobInserter) InsertCaseBackfillJob(ctx context.Context, args CaseBackfillArgs) (bool, error) {
	res, err := r.client.Insert(ctx, args, r.opts())

	return inserted(res, err, args.Kind())
}

func inserted(res *rivertype.JobInsertResult, err error, kind string) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("insert %s job: %w", kind, err)
	}

	return !res.UniqueSkippedAsDuplicate, nil
}
