package model

import "time"

// Job status constants.
const (
	StatusAccepted       = "accepted"
	StatusRunning        = "running"
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusDelivered      = "delivered"
	StatusDeliveryFailed = "delivery_failed"
)

// Outcome messages. The same texts appear in the sync response and in the
// delivery payload, so they live here rather than in either package.
const (
	MessageCompleted = "analysis completed successfully"
	MessageFailed    = "analysis failed: insufficient data or computation error"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Computed outcomes — success and failure alike — move on to a delivery state;
// sync jobs stop at completed/failed because they have no delivery leg.
var validTransitions = map[string]map[string]bool{
	StatusAccepted: {
		StatusRunning: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
	StatusCompleted: {
		StatusDelivered:      true,
		StatusDeliveryFailed: true,
	},
	StatusFailed: {
		StatusDelivered:      true,
		StatusDeliveryFailed: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Job is one accepted request to score an artwork. Each job is owned
// exclusively by the goroutine that runs it; nothing outside that goroutine
// reads or writes it after admission.
type Job struct {
	// RequestID is the caller-supplied correlation id, unique per submission.
	// The remote collaborator uses it to match the callback to its request.
	RequestID int64

	// TaskID is the server-assigned ULID for this run. RequestID is opaque to
	// us, so logs and journal rows carry both.
	TaskID string

	// FactorX and FactorY are the composition-center coordinates, each in [0,1].
	FactorX float64
	FactorY float64

	// Description is free text from the caller. Carried, never interpreted.
	Description string

	SubmittedAt time.Time
}

// Outcome is the result of one Job. Score and Verdict are set only when
// Success is true; ErrorReason only when it is false.
type Outcome struct {
	RequestID int64
	TaskID    string

	Success bool

	// Score is the confidence value. Noise is applied multiplicatively and the
	// result is deliberately not clamped, so it may fall outside [0,1].
	Score   float64
	Verdict string

	ErrorReason string

	// ProcessingSeconds is the wall time of the computation, delay included,
	// rounded to two decimal places.
	ProcessingSeconds float64
}

// Message returns the completion message for the outcome.
func (o Outcome) Message() string {
	if o.Success {
		return MessageCompleted
	}
	return o.ErrorReason
}
