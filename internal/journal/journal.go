package journal

import (
	"context"
	"time"
)

// Record is one terminal analysis entry. Rows are written once, when a job
// reaches its terminal state, and never updated — the journal is an audit
// trail for operators, not a job registry. Nothing on the job path ever reads
// it, and it is never replayed after a restart.
type Record struct {
	TaskID      string   `json:"task_id"`
	RequestID   int64    `json:"request_id"`
	Status      string   `json:"status"`
	Success     bool     `json:"success"`
	Score       *float64 `json:"confidence_score,omitempty"`
	Verdict     string   `json:"analysis_result,omitempty"`
	ErrorReason string   `json:"error,omitempty"`

	// DeliveryID is the UUID of the callback attempt. Empty for sync runs,
	// which have no delivery leg.
	DeliveryID string `json:"delivery_id,omitempty"`

	ProcessingSeconds float64   `json:"processing_seconds"`
	SubmittedAt       time.Time `json:"submitted_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Stats holds aggregate figures over all journaled analyses.
type Stats struct {
	Total                int            `json:"total"`
	CountByStatus        map[string]int `json:"count_by_status"`
	SuccessRate          float64        `json:"success_rate"`
	AvgProcessingSeconds float64        `json:"avg_processing_seconds"`
	AvgScore             float64        `json:"avg_confidence_score"`
}

// Journal defines the persistence operations for terminal analysis records.
type Journal interface {
	Append(ctx context.Context, rec *Record) error
	GetRecord(ctx context.Context, taskID string) (*Record, error)
	ListRecords(ctx context.Context, limit, offset int) ([]*Record, int, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}
