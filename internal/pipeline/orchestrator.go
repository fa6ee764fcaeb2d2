// Package pipeline runs the processing of one sighting: extract faces, match them
// against the registry, record and announce matches, then mark the sighting processed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/faces"
	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/matching"
	"github.com/reunite/hub/internal/models"
	"github.com/reunite/hub/internal/observability"
)

// SightingStore loads sightings and commits their final status.
type SightingStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Sighting, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}

// CaseStore provides the registry snapshot and case details for alerts.
type CaseStore interface {
	ListActiveRegistry(ctx context.Context) ([]models.RegistryEntry, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Case, error)
}

// Matcher scores a probe against a registry snapshot.
type Matcher interface {
	MatchAll(ctx context.Context, probe []float32, registry []models.RegistryEntry) []matching.Candidate
}

// Recorder persists one accepted match.
type Recorder interface {
	Record(ctx context.Context, p models.RecordMatchParams) (*models.Match, error)
}

// MatchNotifier announces an accepted match. It never fails the run.
type MatchNotifier interface {
	NotifyMatch(ctx context.Context, c *models.Case, s *models.Sighting, score float64, facePath string)
}

// FaceIndex keeps extracted faces for retroactive matching of later cases.
type FaceIndex interface {
	Insert(ctx context.Context, face *models.SightingFace) (uuid.UUID, error)
}

// Metrics records run outcomes. Implementations may be nil.
type Metrics interface {
	RecordRun(ctx context.Context, state string, duration time.Duration)
	RecordFacesExtracted(ctx context.Context, count int)
	RecordMatchRecorded(ctx context.Context)
	RecordRecordFailure(ctx context.Context)
}

// Deps holds the collaborators of an Orchestrator. FaceIndex, Metrics and Logger are optional.
type Deps struct {
	Sightings SightingStore
	Cases     CaseStore
	Faces     FaceSource
	Matcher   Matcher
	Recorder  Recorder
	Notifier  MatchNotifier
	FaceIndex FaceIndex
	Metrics   Metrics
	Logger    *slog.Logger
}

// Orchestrator executes sighting processing runs. It holds no per-run state, so
// runs for distinct sightings may execute concurrently.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Orchestrator{deps: deps}
}

// run carries the state of one execution.
type run struct {
	*Orchestrator
	report   RunReport
	sighting *models.Sighting
	registry []models.RegistryEntry
	loaded   bool
	cases    map[uuid.UUID]*models.Case
	logger   *slog.Logger
}

// Run processes one sighting. A nil error means the run reached a terminal state
// that must not be retried: Done, or Failed because the sighting no longer exists.
// A non-nil error leaves the sighting unprocessed so the job can be retried.
func (o *Orchestrator) Run(ctx context.Context, sightingID uuid.UUID) (*RunReport, error) {
	ctx = observability.WithSightingID(ctx, sightingID)
	start := time.Now()

	r := &run{
		Orchestrator: o,
		report:       RunReport{SightingID: sightingID, State: StatePending},
		cases:        make(map[uuid.UUID]*models.Case),
		logger:       o.deps.Logger.With("sighting_id", sightingID),
	}

	err := r.execute(ctx)

	r.report.Duration = time.Since(start)
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordRun(ctx, r.report.State.String(), r.report.Duration)
	}

	r.logger.InfoContext(ctx, "Sighting run finished",
		"state", r.report.State.String(),
		"reason", r.report.Reason,
		"faces", r.report.Faces,
		"candidates", r.report.Candidates,
		"matches_recorded", r.report.MatchesRecorded,
		"record_failures", r.report.RecordFailures,
		"duration", r.report.Duration,
	)

	return &r.report, err
}

func (r *run) execute(ctx context.Context) error {
	sighting, err := r.deps.Sightings.Get(ctx, r.report.SightingID)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			r.fail(ReasonSightingNotFound)

			return nil
		}

		r.fail(ReasonLoadFailed)

		return fmt.Errorf("load sighting: %w", err)
	}

	r.sighting = sighting

	if err := r.extractAndMatch(ctx); err != nil {
		return err
	}

	r.report.State = StateFinalizing

	if err := r.deps.Sightings.MarkProcessed(ctx, sighting.ID); err != nil {
		r.fail(ReasonMarkProcessedFailed)

		return fmt.Errorf("mark sighting processed: %w", err)
	}

	r.report.State = StateDone

	return nil
}

// extractAndMatch only returns an error for failures that must fail the run.
func (r *run) extractAndMatch(ctx context.Context) error {
	r.report.State = StateExtracting

	stream, err := r.deps.Faces.Open(ctx, r.sighting)
	if err != nil {
		return r.extractionError(ctx, fmt.Errorf("open media: %w", err))
	}

	defer func() {
		if err := stream.Close(); err != nil {
			r.logger.WarnContext(ctx, "Failed to close media", "error", err)
		}
	}()

	for stream.Next() {
		r.report.State = StateMatching
		r.report.Faces++

		if err := r.processFace(ctx, stream.Artifact()); err != nil {
			return err
		}
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordFacesExtracted(ctx, r.report.Faces)
	}

	if err := stream.Err(); err != nil {
		return r.extractionError(ctx, fmt.Errorf("extract faces: %w", err))
	}

	return nil
}

// extractionError ends extraction. Unreadable media keeps the faces found so far
// and lets the run finalize; anything else, such as an unreachable embedder, fails
// the run without marking the sighting processed so the job is retried.
func (r *run) extractionError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		r.fail(ReasonCancelled)

		return err
	case errors.Is(err, faces.ErrMediaUnreadable):
		r.mediaUnreadable(ctx, err)

		return nil
	default:
		r.fail(ReasonExtractionFailed)

		return err
	}
}

func (r *run) mediaUnreadable(ctx context.Context, err error) {
	r.report.Reason = ReasonMediaUnreadable
	r.logger.WarnContext(ctx, "Sighting media unreadable, finishing with the faces extracted so far",
		"path", r.sighting.MediaPath,
		"kind", r.sighting.MediaKind,
		"faces", r.report.Faces,
		"error", err,
	)
}

func (r *run) processFace(ctx context.Context, face faces.Artifact) error {
	if err := r.loadRegistry(ctx); err != nil {
		return err
	}

	r.index(ctx, face)

	candidates := r.deps.Matcher.MatchAll(ctx, face.Embedding, r.registry)
	r.report.Candidates += len(candidates)

	for _, cand := range candidates {
		r.accept(ctx, face, cand)
	}

	return nil
}

// loadRegistry takes the run's snapshot on first use; every face of the run is
// matched against the same snapshot.
func (r *run) loadRegistry(ctx context.Context) error {
	if r.loaded {
		return nil
	}

	registry, err := r.deps.Cases.ListActiveRegistry(ctx)
	if err != nil {
		r.fail(ReasonRegistryUnavailable)

		return fmt.Errorf("load registry: %w", err)
	}

	r.registry = registry
	r.loaded = true

	r.logger.DebugContext(ctx, "Registry snapshot taken", "entries", len(registry))

	return nil
}

func (r *run) index(ctx context.Context, face faces.Artifact) {
	if r.deps.FaceIndex == nil {
		return
	}

	_, err := r.deps.FaceIndex.Insert(ctx, &models.SightingFace{
		SightingID:      face.SightingID,
		FrameIndex:      face.FrameIndex,
		FaceIndex:       face.FaceIndex,
		ArtifactPath:    face.Path,
		StrategyVersion: r.deps.Faces.Version(),
		Embedding:       face.Embedding,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to index sighting face",
			"frame", face.FrameIndex, "face", face.FaceIndex, "error", err)
	}
}

// accept records one candidate and notifies about it. Failures are logged and the
// caller moves on to the next candidate.
func (r *run) accept(ctx context.Context, face faces.Artifact, cand matching.Candidate) {
	caseID := cand.Entry.CaseID

	match, err := r.deps.Recorder.Record(ctx, models.RecordMatchParams{
		CaseID:     caseID,
		SightingID: r.sighting.ID,
		Score:      cand.Score,
		FacePath:   face.Path,
		Geo:        r.sighting.Geo,
	})
	if err != nil {
		r.report.RecordFailures++
		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordRecordFailure(ctx)
		}

		r.logger.ErrorContext(ctx, "Failed to record match, skipping",
			"case_id", caseID, "score", cand.Score, "face_path", face.Path, "error", err)

		return
	}

	r.report.MatchesRecorded++
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordMatchRecorded(ctx)
	}

	r.logger.InfoContext(ctx, "Match recorded",
		"match_id", match.ID, "case_id", caseID, "score", cand.Score)

	c, err := r.caseFor(ctx, caseID)
	if err != nil {
		r.logger.WarnContext(ctx, "Case unavailable, match recorded without alert",
			"match_id", match.ID, "case_id", caseID, "error", err)

		return
	}

	r.deps.Notifier.NotifyMatch(ctx, c, r.sighting, cand.Score, face.Path)
}

func (r *run) caseFor(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	if c, ok := r.cases[id]; ok {
		return c, nil
	}

	c, err := r.deps.Cases.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cases[id] = c

	return c, nil
}

func (r *run) fail(reason string) {
	r.report.State = StateFailed
	r.report.Reason = reason
}
