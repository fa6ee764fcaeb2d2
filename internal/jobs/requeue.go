package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reunite/hub/internal/models"
)

// UnprocessedLister lists sightings that have not been marked processed.
type UnprocessedLister interface {
	ListUnprocessed(ctx context.Context, limit int) ([]models.Sighting, error)
}

// RequeueStats holds the outcome of a requeue pass.
type RequeueStats struct {
	Found    int
	Enqueued int
	Skipped  int
	Errors   int
}

// RequeueUnprocessed enqueues a processing job for every unprocessed sighting, oldest
// first, up to limit. Sightings that already have an active job are skipped.
// progress, when non-nil, is called once per sighting.
func RequeueUnprocessed(
	ctx context.Context, lister UnprocessedLister, inserter JobInserter, limit int, progress func(),
) (*RequeueStats, error) {
	sightings, err := lister.ListUnprocessed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed sightings: %w", err)
	}

	stats := &RequeueStats{Found: len(sightings)}

	for _, s := range sightings {
		ok, err := inserter.InsertSightingJob(ctx, SightingProcessingArgs{SightingID: s.ID})

		switch {
		case err != nil:
			slog.Error("Failed to requeue sighting", "sighting_id", s.ID, "error", err)

			stats.Errors++
		case ok:
			stats.Enqueued++
		default:
			stats.Skipped++
		}

		if progress != nil {
			progress()
		}

		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
	}

	return stats, nil
}
