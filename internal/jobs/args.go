// Package jobs defines the River job arguments of the hub and how they are enqueued.
package jobs

import (
	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// QueueSightings is the River queue sighting and backfill jobs run on.
const QueueSightings = "sightings"

// activeStates are the job states that make a job count as in progress. River requires
// JobStatePending whenever ByState is set.
var activeStates = []rivertype.JobState{
	rivertype.JobStatePending,
	rivertype.JobStateAvailable,
	rivertype.JobStateRunning,
	rivertype.JobStateRetryable,
	rivertype.JobStateScheduled,
}

// SightingProcessingArgs schedules one processing run of a sighting.
// At most one such job per sighting can be active at any time.
type SightingProcessingArgs struct {
	SightingID uuid.UUID `json:"sighting_id"`
}

// Kind returns the job type identifier for River.
func (SightingProcessingArgs) Kind() string { return "sighting_processing" }

// InsertOpts places the job on the sightings queue, unique while active.
func (SightingProcessingArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:      QueueSightings,
		UniqueOpts: river.UniqueOpts{ByArgs: true, ByState: activeStates},
	}
}

// CaseBackfillArgs schedules retroactive matching of a newly enrolled case against
// faces from already processed sightings.
type CaseBackfillArgs struct {
	CaseID uuid.UUID `json:"case_id"`
}

// Kind returns the job type identifier for River.
func (CaseBackfillArgs) Kind() string { return "case_backfill" }

// InsertOpts places the job on the sightings queue, unique while active.
func (CaseBackfillArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:      QueueSightings,
		UniqueOpts: river.UniqueOpts{ByArgs: true, ByState: activeStates},
	}
}
