package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// RunState is a step of a sighting processing run.
type RunState int

// Run states. Failed is reachable from every state.
const (
	StatePending RunState = iota
	StateExtracting
	StateMatching
	StateFinalizing
	StateDone
	StateFailed
)

var stateNames = [...]string{"pending", "extracting", "matching", "finalizing", "done", "failed"}

func (s RunState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// Reasons attached to a RunReport.
const (
	ReasonSightingNotFound    = "sighting_not_found"
	ReasonLoadFailed          = "load_failed"
	ReasonRegistryUnavailable = "registry_unavailable"
	ReasonMediaUnreadable     = "media_unreadable"
	ReasonExtractionFailed    = "extraction_failed"
	ReasonMarkProcessedFailed = "mark_processed_failed"
	ReasonCancelled           = "cancelled"
)

// RunReport summarizes one processing run.
type RunReport struct {
	SightingID      uuid.UUID
	State           RunState
	Reason          string
	Faces           int
	Candidates      int
	MatchesRecorded int
	RecordFailures  int
	Duration        time.Duration
}
