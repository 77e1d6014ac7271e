package runner

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/atelierhq/critique/internal/analysis"
	"github.com/atelierhq/critique/internal/journal"
	"github.com/atelierhq/critique/internal/model"
)

// journalTimeout bounds the append of a finished record. The journal is
// observability, not the source of truth, so a slow disk must not pin a job
// goroutine for long.
const journalTimeout = 5 * time.Second

// Sampler supplies the stochastic parts of an analysis run. *analysis.Sampler
// satisfies it; tests substitute fixed draws.
type Sampler interface {
	Delay() time.Duration
	Succeeds() bool
	Noise() float64
}

// Deliverer posts a finished outcome back to the main service and returns the
// id assigned to the delivery attempt.
type Deliverer interface {
	Deliver(ctx context.Context, out model.Outcome) (string, error)
}

// Runner executes analysis jobs. Submit schedules a job on its own goroutine
// and returns immediately; RunSync performs the same analysis on the caller's
// goroutine and skips result delivery.
type Runner struct {
	sampler   Sampler
	deliverer Deliverer
	journal   journal.Journal
	feed      *Feed
	logger    *slog.Logger

	wg sync.WaitGroup
}

// New creates a Runner. The journal may be nil, in which case finished jobs
// are not recorded.
func New(s Sampler, d Deliverer, j journal.Journal, logger *slog.Logger) *Runner {
	return &Runner{
		sampler:   s,
		deliverer: d,
		journal:   j,
		feed:      NewFeed(),
		logger:    logger,
	}
}

// Feed exposes the terminal-outcome feed for streaming consumers.
func (r *Runner) Feed() *Feed {
	return r.feed
}

// Submit schedules asynchronous processing of the job and returns without
// waiting for it. The result reaches the main service through the configured
// Deliverer once the analysis finishes.
func (r *Runner) Submit(job model.Job) {
	r.logger.Info("analysis accepted",
		"request_id", job.RequestID,
		"task_id", job.TaskID,
		"factor_x", job.FactorX,
		"factor_y", job.FactorY,
	)
	r.wg.Go(func() {
		r.run(job)
	})
}

// run is the whole life of one asynchronous job. It recovers its own panics:
// a fault in one job must never take down the process or other jobs.
func (r *Runner) run(job model.Job) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("analysis task panicked",
				"request_id", job.RequestID,
				"task_id", job.TaskID,
				"panic", p,
			)
		}
	}()

	jobsInflight.Inc()
	defer jobsInflight.Dec()

	out := r.analyze(job)
	status, deliveryID := r.deliver(job, out)
	r.record(job, out, status, deliveryID)
	r.feed.Publish(out)
}

// RunSync performs the analysis on the caller's goroutine and returns the
// outcome directly. No delivery is attempted; the job is terminal at
// completed or failed.
func (r *Runner) RunSync(job model.Job) model.Outcome {
	r.logger.Info("analysis accepted",
		"request_id", job.RequestID,
		"task_id", job.TaskID,
		"mode", "sync",
	)

	jobsInflight.Inc()
	defer jobsInflight.Dec()

	out := r.analyze(job)
	status := model.StatusCompleted
	if !out.Success {
		status = model.StatusFailed
	}
	r.record(job, out, status, "")
	r.feed.Publish(out)
	return out
}

// analyze runs the simulated scoring pass: wait out the sampled computation
// delay, then either score the factors or fail the job.
func (r *Runner) analyze(job model.Job) model.Outcome {
	start := time.Now()
	delay := r.sampler.Delay()
	r.logger.Info("analysis running",
		"request_id", job.RequestID,
		"task_id", job.TaskID,
		"delay_seconds", delay.Seconds(),
	)
	// The sleep stands in for the computation itself, so there is
	// deliberately no cancellation here.
	time.Sleep(delay)

	out := model.Outcome{
		RequestID: job.RequestID,
		TaskID:    job.TaskID,
	}
	if r.sampler.Succeeds() {
		raw := analysis.BaseScore(job.FactorX, job.FactorY) * r.sampler.Noise()
		// The verdict is bucketed on the raw value; rounding happens
		// after so a boundary score cannot flip buckets.
		out.Success = true
		out.Verdict = analysis.Verdict(raw)
		out.Score = round(raw, 4)
	} else {
		out.ErrorReason = model.MessageFailed
	}
	out.ProcessingSeconds = round(time.Since(start).Seconds(), 2)

	outcome := "completed"
	if !out.Success {
		outcome = "failed"
	}
	analysesTotal.WithLabelValues(outcome).Inc()
	analysisDuration.Observe(time.Since(start).Seconds())

	r.logger.Info("analysis finished",
		"request_id", job.RequestID,
		"task_id", job.TaskID,
		"success", out.Success,
		"confidence_score", out.Score,
		"processing_seconds", out.ProcessingSeconds,
	)
	return out
}

// deliver makes exactly one delivery attempt and maps its result onto the
// job's terminal status. The attempt is bounded by the Deliverer's own
// timeout, so a background context is enough here.
func (r *Runner) deliver(job model.Job, out model.Outcome) (status, deliveryID string) {
	start := time.Now()
	deliveryID, err := r.deliverer.Deliver(context.Background(), out)
	deliveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		deliveriesTotal.WithLabelValues("error").Inc()
		r.logger.Error("result delivery failed",
			"request_id", job.RequestID,
			"task_id", job.TaskID,
			"delivery_id", deliveryID,
			"error", err,
		)
		return model.StatusDeliveryFailed, deliveryID
	}
	deliveriesTotal.WithLabelValues("ok").Inc()
	r.logger.Info("result delivered",
		"request_id", job.RequestID,
		"task_id", job.TaskID,
		"delivery_id", deliveryID,
	)
	return model.StatusDelivered, deliveryID
}

// record appends the finished job to the journal. Append failures are logged
// and dropped; the journal never gates job completion.
func (r *Runner) record(job model.Job, out model.Outcome, status, deliveryID string) {
	if r.journal == nil {
		return
	}
	rec := &journal.Record{
		TaskID:            job.TaskID,
		RequestID:         job.RequestID,
		Status:            status,
		Success:           out.Success,
		ErrorReason:       out.ErrorReason,
		DeliveryID:        deliveryID,
		ProcessingSeconds: out.ProcessingSeconds,
		SubmittedAt:       job.SubmittedAt,
		FinishedAt:        time.Now().UTC(),
	}
	if out.Success {
		score := out.Score
		rec.Score = &score
		rec.Verdict = out.Verdict
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := r.journal.Append(ctx, rec); err != nil {
		r.logger.Error("journal append failed",
			"request_id", job.RequestID,
			"task_id", job.TaskID,
			"error", err,
		)
	}
}

// Drain blocks until all in-flight jobs have reached a terminal state, or the
// timeout elapses. It reports whether the runner drained completely.
func (r *Runner) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// round rounds v to the given number of decimal places.
func round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}
