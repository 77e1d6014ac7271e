// Package runner owns the lifecycle of accepted analysis jobs. Each
// submission runs on its own goroutine that holds the job exclusively from
// admission through the terminal delivery state: there is no shared job
// registry, no cross-job coordination, and no cancellation path once a job
// starts. Every job goroutine recovers its own panics; a background fault
// never crashes the process.
package runner
