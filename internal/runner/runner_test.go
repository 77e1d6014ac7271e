package runner_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/atelierhq/critique/internal/analysis"
	"github.com/atelierhq/critique/internal/journal"
	"github.com/atelierhq/critique/internal/model"
	"github.com/atelierhq/critique/internal/runner"
)

// fixedSampler returns configurable draws so tests control both branches of
// the analysis.
type fixedSampler struct {
	delay   time.Duration
	success bool
	noise   float64
}

func (s *fixedSampler) Delay() time.Duration { return s.delay }
func (s *fixedSampler) Succeeds() bool       { return s.success }
func (s *fixedSampler) Noise() float64       { return s.noise }

// countingDeliverer records every outcome it is asked to deliver.
type countingDeliverer struct {
	mu    sync.Mutex
	calls []model.Outcome
	err   error
	boom  bool
}

func (d *countingDeliverer) Deliver(_ context.Context, out model.Outcome) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, out)
	n := len(d.calls)
	d.mu.Unlock()
	if d.boom {
		panic("deliverer exploded")
	}
	if d.err != nil {
		return fmt.Sprintf("attempt-%d", n), d.err
	}
	return fmt.Sprintf("attempt-%d", n), nil
}

func (d *countingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *countingDeliverer) outcome(i int) model.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[i]
}

func newTestRunner(t *testing.T, s runner.Sampler, d runner.Deliverer) (*runner.Runner, journal.Journal) {
	t.Helper()
	j, err := journal.NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return runner.New(s, d, j, logger), j
}

func makeJob(requestID int64) model.Job {
	return model.Job{
		RequestID:   requestID,
		TaskID:      model.NewTaskID(),
		FactorX:     0.5,
		FactorY:     0.5,
		SubmittedAt: time.Now().UTC(),
	}
}

// waitForRecord polls the journal until the task's terminal record appears.
func waitForRecord(t *testing.T, j journal.Journal, taskID string, timeout time.Duration) *journal.Record {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, err := j.GetRecord(context.Background(), taskID)
		if err == nil {
			return rec
		}
		if !errors.Is(err, journal.ErrNotFound) {
			t.Fatalf("GetRecord: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s was not journaled within %v", taskID, timeout)
	return nil
}

func TestSubmitDeliversExactlyOnce(t *testing.T) {
	d := &countingDeliverer{}
	r, j := newTestRunner(t, &fixedSampler{delay: 10 * time.Millisecond, success: true, noise: 1.0}, d)

	job := makeJob(101)
	r.Submit(job)

	rec := waitForRecord(t, j, job.TaskID, 5*time.Second)
	if rec.Status != model.StatusDelivered {
		t.Errorf("status = %q, want %q", rec.Status, model.StatusDelivered)
	}
	if got := d.count(); got != 1 {
		t.Fatalf("delivery attempts = %d, want exactly 1", got)
	}
	if rec.DeliveryID != "attempt-1" {
		t.Errorf("delivery_id = %q, want %q", rec.DeliveryID, "attempt-1")
	}

	// Centered factors with unit noise score a clean 1.0.
	out := d.outcome(0)
	if !out.Success {
		t.Error("outcome should be a success")
	}
	if out.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", out.Score)
	}
	if out.Verdict != analysis.VerdictExcellent {
		t.Errorf("verdict = %q, want %q", out.Verdict, analysis.VerdictExcellent)
	}
	if out.RequestID != 101 {
		t.Errorf("request_id = %d, want 101", out.RequestID)
	}
	if out.ProcessingSeconds <= 0 {
		t.Errorf("processing_seconds = %v, want > 0", out.ProcessingSeconds)
	}
}

func TestSubmitReturnsBeforeAnalysisFinishes(t *testing.T) {
	d := &countingDeliverer{}
	r, _ := newTestRunner(t, &fixedSampler{delay: 300 * time.Millisecond, success: true, noise: 1.0}, d)

	start := time.Now()
	r.Submit(makeJob(1))
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Submit blocked for %v, want an immediate return", elapsed)
	}

	if !r.Drain(5 * time.Second) {
		t.Fatal("runner did not drain")
	}
	if got := d.count(); got != 1 {
		t.Errorf("delivery attempts = %d, want 1", got)
	}
}

func TestFailedAnalysisIsStillDelivered(t *testing.T) {
	d := &countingDeliverer{}
	r, j := newTestRunner(t, &fixedSampler{success: false}, d)

	job := makeJob(7)
	r.Submit(job)

	rec := waitForRecord(t, j, job.TaskID, 5*time.Second)
	if rec.Status != model.StatusDelivered {
		t.Errorf("status = %q, want %q", rec.Status, model.StatusDelivered)
	}
	if rec.Success {
		t.Error("record should be a failure")
	}
	if rec.Score != nil {
		t.Errorf("score = %v, want nil for failed analysis", *rec.Score)
	}
	if rec.Verdict != "" {
		t.Errorf("verdict = %q, want empty for failed analysis", rec.Verdict)
	}

	out := d.outcome(0)
	if out.Success {
		t.Error("delivered outcome should be a failure")
	}
	if out.ErrorReason == "" {
		t.Error("failed outcome should carry an error reason")
	}
}

func TestDeliveryErrorIsTerminal(t *testing.T) {
	d := &countingDeliverer{err: errors.New("main service is down")}
	r, j := newTestRunner(t, &fixedSampler{success: true, noise: 1.0}, d)

	job := makeJob(3)
	r.Submit(job)

	rec := waitForRecord(t, j, job.TaskID, 5*time.Second)
	if rec.Status != model.StatusDeliveryFailed {
		t.Errorf("status = %q, want %q", rec.Status, model.StatusDeliveryFailed)
	}
	// No retries: one attempt and the job is terminal.
	if got := d.count(); got != 1 {
		t.Errorf("delivery attempts = %d, want exactly 1", got)
	}
	if rec.DeliveryID != "attempt-1" {
		t.Errorf("delivery_id = %q, want the failed attempt recorded", rec.DeliveryID)
	}
}

func TestRunSyncSkipsDelivery(t *testing.T) {
	d := &countingDeliverer{}
	r, j := newTestRunner(t, &fixedSampler{delay: 10 * time.Millisecond, success: true, noise: 1.0}, d)

	job := makeJob(42)
	out := r.RunSync(job)

	if !out.Success {
		t.Error("outcome should be a success")
	}
	if out.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", out.Score)
	}
	if got := d.count(); got != 0 {
		t.Errorf("delivery attempts = %d, want 0 for sync runs", got)
	}

	rec := waitForRecord(t, j, job.TaskID, time.Second)
	if rec.Status != model.StatusCompleted {
		t.Errorf("status = %q, want %q", rec.Status, model.StatusCompleted)
	}
	if rec.DeliveryID != "" {
		t.Errorf("delivery_id = %q, want empty for sync runs", rec.DeliveryID)
	}
}

func TestRunSyncFailure(t *testing.T) {
	d := &countingDeliverer{}
	r, j := newTestRunner(t, &fixedSampler{success: false}, d)

	job := makeJob(9)
	out := r.RunSync(job)

	if out.Success {
		t.Error("outcome should be a failure")
	}
	if out.Score != 0 {
		t.Errorf("score = %v, want 0 for failed analysis", out.Score)
	}
	if out.ErrorReason == "" {
		t.Error("failed outcome should carry an error reason")
	}

	rec := waitForRecord(t, j, job.TaskID, time.Second)
	if rec.Status != model.StatusFailed {
		t.Errorf("status = %q, want %q", rec.Status, model.StatusFailed)
	}
}

func TestScoreRoundedAfterVerdict(t *testing.T) {
	// noise chosen so the raw score has more than four decimals
	d := &countingDeliverer{}
	r, _ := newTestRunner(t, &fixedSampler{success: true, noise: 0.333333}, d)

	out := r.RunSync(makeJob(5))
	if out.Score != 0.3333 {
		t.Errorf("score = %v, want 0.3333 after rounding", out.Score)
	}
	// 0.333333 is above the 0.3 review threshold, so the verdict is the
	// adjustment bucket even though the rounded score prints as 0.3333.
	if out.Verdict != analysis.VerdictAdjust {
		t.Errorf("verdict = %q, want %q", out.Verdict, analysis.VerdictAdjust)
	}
}

func TestPanickedDelivererDoesNotCrashRunner(t *testing.T) {
	d := &countingDeliverer{boom: true}
	r, j := newTestRunner(t, &fixedSampler{success: true, noise: 1.0}, d)

	job := makeJob(13)
	r.Submit(job)

	if !r.Drain(5 * time.Second) {
		t.Fatal("runner did not drain after a panicked delivery")
	}
	// The panic unwinds the job before it reaches the journal.
	if _, err := j.GetRecord(context.Background(), job.TaskID); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("GetRecord error = %v, want ErrNotFound", err)
	}

	// The runner must still process later jobs.
	d.boom = false
	next := makeJob(14)
	r.Submit(next)
	rec := waitForRecord(t, j, next.TaskID, 5*time.Second)
	if rec.Status != model.StatusDelivered {
		t.Errorf("follow-up status = %q, want %q", rec.Status, model.StatusDelivered)
	}
}

func TestSubmitConcurrent(t *testing.T) {
	d := &countingDeliverer{}
	r, j := newTestRunner(t, &fixedSampler{delay: 50 * time.Millisecond, success: true, noise: 1.0}, d)

	jobs := make([]model.Job, 5)
	for i := range jobs {
		jobs[i] = makeJob(int64(100 + i))
		r.Submit(jobs[i])
	}

	if !r.Drain(5 * time.Second) {
		t.Fatal("runner did not drain")
	}
	if got := d.count(); got != len(jobs) {
		t.Errorf("delivery attempts = %d, want %d", got, len(jobs))
	}
	for _, job := range jobs {
		rec := waitForRecord(t, j, job.TaskID, time.Second)
		if rec.Status != model.StatusDelivered {
			t.Errorf("task %s status = %q, want %q", job.TaskID, rec.Status, model.StatusDelivered)
		}
	}
}

func TestFeedReceivesTerminalOutcomes(t *testing.T) {
	d := &countingDeliverer{}
	r, _ := newTestRunner(t, &fixedSampler{delay: 10 * time.Millisecond, success: true, noise: 1.0}, d)

	ch, unsub := r.Feed().Subscribe()
	defer unsub()

	job := makeJob(77)
	r.Submit(job)

	select {
	case out := <-ch:
		if out.TaskID != job.TaskID {
			t.Errorf("feed outcome task = %q, want %q", out.TaskID, job.TaskID)
		}
		if out.RequestID != 77 {
			t.Errorf("feed outcome request_id = %d, want 77", out.RequestID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome on the feed within 5s")
	}
}

func TestNilJournalIsAllowed(t *testing.T) {
	d := &countingDeliverer{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	r := runner.New(&fixedSampler{success: true, noise: 1.0}, d, nil, logger)

	out := r.RunSync(makeJob(1))
	if !out.Success {
		t.Error("outcome should be a success")
	}
}
