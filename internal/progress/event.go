// Package progress defines the event stream emitted while a crawl runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the kind of milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StagePhaseStart   Stage = "PHASE_START"
	StagePhaseDone    Stage = "PHASE_DONE"
	StageBatchDone    Stage = "BATCH_DONE"
	StageFetchDone    Stage = "FETCH_DONE"
	StageThrottleWait Stage = "THROTTLE_WAIT"
)

// Event captures a single milestone of crawl progress. Events are
// observability only; nothing in the pipeline branches on them.
type Event struct {
	// RunID identifies the crawl run that produced the event.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Phase scopes the event to a crawl phase (league, team, player, match).
	Phase string
	// URL is set on fetch-level events.
	URL string
	// Batch is the zero-based batch index for BATCH_DONE events.
	Batch int
	// Items counts scheduled or completed work items.
	Items int
	// Bytes carries the response size for FETCH_DONE events.
	Bytes int64
	// Dur is the fetch latency, throttle cooldown, or phase runtime.
	Dur time.Duration
	// Note carries low-volume debug context.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StagePhaseStart, StagePhaseDone, StageBatchDone:
		if e.Phase == "" {
			return fmt.Errorf("%s requires a phase", e.Stage)
		}
	case StageFetchDone, StageThrottleWait:
		if e.URL == "" {
			return fmt.Errorf("%s requires a url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
