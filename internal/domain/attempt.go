package domain

import "time"

// Outcome classifies how a deployment attempt ended.
type Outcome string

const (
	// OutcomeSuccess means the target slot was promoted and now serves
	// traffic.
	OutcomeSuccess Outcome = "success"

	// OutcomeHealthFailed means the target never became healthy; it was
	// force-stopped and the previously live slot kept serving.
	OutcomeHealthFailed Outcome = "health-failed"

	// OutcomeAborted means the attempt failed before any health probe
	// ran (staging, start, or proxy reload); no shared state was
	// mutated.
	OutcomeAborted Outcome = "aborted"
)

// AttemptRecord is the audit row appended to the attempt log when a
// deployment attempt finishes. It is write-only from the pipeline's point
// of view: nothing in slot resolution or promotion ever reads it back.
type AttemptRecord struct {
	ID         string
	Source     Slot
	Target     Slot
	ReleaseID  ReleaseID
	Outcome    Outcome
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
