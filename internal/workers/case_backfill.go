package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/reunite/hub/internal/embedding"
	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/jobs"
	"github.com/reunite/hub/internal/models"
)

// MaxBackfillHits caps the stored faces considered for one case.
const MaxBackfillHits = 500

// CaseBackfillTimeout bounds one retroactive matching job.
const CaseBackfillTimeout = 5 * time.Minute

// CaseBackfillPendingWait is how long a backfill keeps snoozing for hits on sightings
// whose own run has not finished. After that those sightings are left to their runs,
// which match against every active case.
const CaseBackfillPendingWait = 30 * time.Minute

const caseBackfillRecheck = 30 * time.Second

type backfillCases interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Case, error)
}

type backfillSightings interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Sighting, error)
}

type similarFaces interface {
	FindSimilar(ctx context.Context, probe []float32, version byte, minScore float64, limit int) ([]models.SimilarFace, error)
}

type caseMatches interface {
	List(ctx context.Context, filters *models.ListMatchesFilters) ([]models.Match, error)
}

type matchRecorder interface {
	Record(ctx context.Context, p models.RecordMatchParams) (*models.Match, error)
}

type matchNotifier interface {
	NotifyMatch(ctx context.Context, c *models.Case, s *models.Sighting, score float64, facePath string)
}

// CaseBackfillDeps holds the collaborators of a CaseBackfillWorker.
type CaseBackfillDeps struct {
	Cases     backfillCases
	Sightings backfillSightings
	Faces     similarFaces
	Matches   caseMatches
	Recorder  matchRecorder
	Notifier  matchNotifier
	Codec     embedding.Codec
	Threshold float64
	Logger    *slog.Logger
}

// CaseBackfillWorker matches a newly enrolled case against faces already extracted
// from processed sightings.
type CaseBackfillWorker struct {
	river.WorkerDefaults[jobs.CaseBackfillArgs]

	deps CaseBackfillDeps
}

// NewCaseBackfillWorker creates a CaseBackfillWorker.
func NewCaseBackfillWorker(deps CaseBackfillDeps) *CaseBackfillWorker {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &CaseBackfillWorker{deps: deps}
}

// Timeout limits how long one backfill can run.
func (w *CaseBackfillWorker) Timeout(*river.Job[jobs.CaseBackfillArgs]) time.Duration {
	return CaseBackfillTimeout
}

// Work records a match for every stored face that scores at or above the
// threshold, skipping sightings the case is already matched with. Faces of
// sightings still being processed are left to that run; the job snoozes until the
// run finishes so a case enrolled after the run's snapshot is still matched.
// Record and notification failures are logged per face and do not fail the job.
func (w *CaseBackfillWorker) Work(ctx context.Context, job *river.Job[jobs.CaseBackfillArgs]) error {
	caseID := job.Args.CaseID
	logger := w.deps.Logger.With("case_id", caseID, "job_id", job.ID)

	c, err := w.deps.Cases.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			logger.InfoContext(ctx, "Case deleted before backfill, skipping")

			return nil
		}

		return fmt.Errorf("load case: %w", err)
	}

	if c.IsFound || len(c.FaceEmbedding) == 0 {
		return nil
	}

	probe, err := w.deps.Codec.Decode(c.FaceEmbedding)
	if err != nil {
		logger.WarnContext(ctx, "Case embedding unusable for backfill", "error", err)

		return nil
	}

	hits, err := w.deps.Faces.FindSimilar(ctx, probe, w.deps.Codec.Version(), w.deps.Threshold, MaxBackfillHits)
	if err != nil {
		return fmt.Errorf("find similar faces: %w", err)
	}

	if len(hits) == 0 {
		return nil
	}

	seen, err := w.matchedSightings(ctx, caseID)
	if err != nil {
		return err
	}

	recorded := 0
	pending := make(map[uuid.UUID]bool)

	for _, hit := range hits {
		if seen[hit.SightingID] || pending[hit.SightingID] {
			continue
		}

		s, err := w.deps.Sightings.Get(ctx, hit.SightingID)
		if err != nil {
			logger.WarnContext(ctx, "Sighting unavailable for backfill hit", "sighting_id", hit.SightingID, "error", err)

			continue
		}

		if !s.Processed {
			pending[s.ID] = true

			continue
		}

		if w.accept(ctx, logger, c, s, hit) {
			seen[hit.SightingID] = true
			recorded++
		}
	}

	if len(pending) > 0 {
		if time.Since(job.CreatedAt) < CaseBackfillPendingWait {
			logger.InfoContext(ctx, "Sightings still processing, snoozing backfill",
				"pending", len(pending), "matches_recorded", recorded)

			return river.JobSnooze(caseBackfillRecheck)
		}

		logger.WarnContext(ctx, "Sightings still unprocessed, leaving them to their runs", "pending", len(pending))
	}

	logger.InfoContext(ctx, "Case backfill finished", "candidates", len(hits), "matches_recorded", recorded)

	return nil
}

func (w *CaseBackfillWorker) matchedSightings(ctx context.Context, caseID uuid.UUID) (map[uuid.UUID]bool, error) {
	existing, err := w.deps.Matches.List(ctx, &models.ListMatchesFilters{CaseID: &caseID, Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("list existing matches: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(existing))
	for _, m := range existing {
		seen[m.SightingID] = true
	}

	return seen, nil
}

func (w *CaseBackfillWorker) accept(ctx context.Context, logger *slog.Logger, c *models.Case, s *models.Sighting, hit models.SimilarFace) bool {
	match, err := w.deps.Recorder.Record(ctx, models.RecordMatchParams{
		CaseID:     c.ID,
		SightingID: s.ID,
		Score:      hit.Score,
		FacePath:   hit.ArtifactPath,
		Geo:        s.Geo,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record backfill match, skipping",
			"sighting_id", s.ID, "score", hit.Score, "error", err)

		return false
	}

	logger.InfoContext(ctx, "Backfill match recorded", "match_id", match.ID, "sighting_id", s.ID, "score", hit.Score)

	w.deps.Notifier.NotifyMatch(ctx, c, s, hit.Score, hit.ArtifactPath)

	return true
}
