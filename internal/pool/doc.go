// Package pool provides the fixed-size worker pools behind the read,
// execute, and write stages.
//
// # Overview
//
// A pool is an unbounded FIFO queue drained by a fixed number of workers
// parked on a condition variable. Submit wakes one worker; Destroy wakes
// them all, discards whatever is still queued, lets in-flight jobs finish,
// and joins the workers before returning.
//
// # Job Contract
//
// A Job is an owning handle whose Run returns an integer status. The only
// contract is the sign: non-negative means the job completed, negative
// means it failed fatally for whatever it was operating on. The pool logs
// negative statuses and keeps going; a job arranges its own cleanup before
// returning one. Workers survive failing jobs.
//
// # Ordering
//
// Jobs are dequeued in submission order, but with multiple workers there
// is no cross-job ordering guarantee: job 2 may finish before job 1. The
// per-connection serialization of the pipeline comes from the
// orchestrator's index-set ownership, not from the pool: a connection has
// at most one job in flight, so which worker runs it never matters.
//
// # Usage Example
//
//	p := pool.New("execute", 8)
//	defer p.Destroy()
//
//	p.Submit(job) // any value with Run() int
//
// # Limitations and Future Work
//
//   - The queue is unbounded; callers own backpressure
//   - No per-job timeouts or cancellation
//   - QueueLen is a point-in-time read, useful for tests and gauges only
//
// # See Also
//
// Related packages:
//   - internal/server: submits the stage jobs and owns their scheduling
//     invariant
package pool
