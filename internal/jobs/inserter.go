package jobs

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// JobInserter enqueues hub jobs without callers knowing about River.
// Every method reports inserted=false when an equal job is already active.
type JobInserter interface {
	// InsertSightingJobTx enqueues a processing run inside tx, so the job only
	// becomes visible if tx commits.
	InsertSightingJobTx(ctx context.Context, tx pgx.Tx, args SightingProcessingArgs) (inserted bool, err error)
	InsertSightingJob(ctx context.Context, args SightingProcessingArgs) (inserted bool, err error)
	InsertCaseBackfillJob(ctx context.Context, args CaseBackfillArgs) (inserted bool, err error)
}
