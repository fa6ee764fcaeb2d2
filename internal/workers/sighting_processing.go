// Package workers provides the River workers that run sighting processing and
// retroactive case matching.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/reunite/hub/internal/jobs"
	"github.com/reunite/hub/internal/pipeline"
)

// SightingRunner executes one processing run.
type SightingRunner interface {
	Run(ctx context.Context, sightingID uuid.UUID) (*pipeline.RunReport, error)
}

// SightingProcessingWorker runs the pipeline for one sighting.
type SightingProcessingWorker struct {
	river.WorkerDefaults[jobs.SightingProcessingArgs]

	runner SightingRunner
}

// NewSightingProcessingWorker creates a worker backed by runner.
func NewSightingProcessingWorker(runner SightingRunner) *SightingProcessingWorker {
	return &SightingProcessingWorker{runner: runner}
}

// Timeout disables River's default job timeout. Long videos are bounded by the
// number of sampled frames, not wall time, and cancellation still reaches the run
// on shutdown.
func (w *SightingProcessingWorker) Timeout(*river.Job[jobs.SightingProcessingArgs]) time.Duration {
	return -1
}

// Work runs the pipeline. A returned error makes River retry the job; terminal
// failures such as a deleted sighting complete the job.
func (w *SightingProcessingWorker) Work(ctx context.Context, job *river.Job[jobs.SightingProcessingArgs]) error {
	if _, err := w.runner.Run(ctx, job.Args.SightingID); err != nil {
		return fmt.Errorf("process sighting %s: %w", job.Args.SightingID, err)
	}

	return nil
}
