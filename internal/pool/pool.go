package pool

import (
	"log"
	"sync"
)

// Job is an owning unit of work submitted to a Pool. Run returns a status
// whose only contract is its sign: non-negative means the job completed,
// negative means it failed fatally for whatever it was operating on. The
// pool does not interpret specific codes; a job arranges its own cleanup
// before returning a negative status.
type Job interface {
	Run() int
}

// Pool is a fixed set of workers draining a FIFO job queue.
//
// Workers block on a condition variable until a job is queued. Submit
// appends and signals one worker. The queue is unbounded: backpressure is
// the caller's concern, not the pool's.
//
// Lifecycle mirrors its construction: New spawns the workers, Destroy sets
// the draining flag, wakes everyone and joins. Jobs already running finish;
// jobs still queued are discarded.
type Pool struct {
	cond     *sync.Cond     // Signals workers when jobs arrive or draining starts
	name     string         // For log messages
	queue    []Job          // FIFO of pending jobs; guarded by mu
	mu       sync.Mutex     // Protects queue and draining
	wg       sync.WaitGroup // Joins workers on Destroy
	draining bool           // Set once by Destroy; never cleared
}

// New creates a pool and starts its workers.
//
// Parameters:
//   - name: Identifier used in log messages (e.g. "read", "execute")
//   - workers: Number of worker goroutines (must be >= 1)
func New(name string, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{name: name}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit appends a job to the queue and wakes one worker. Jobs submitted
// after Destroy has begun are dropped.
func (p *Pool) Submit(j Job) {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, j)
	p.mu.Unlock()

	p.cond.Signal()
}

// Destroy stops the pool: pending jobs are discarded, in-flight jobs run to
// completion, and all workers are joined before Destroy returns. Safe to
// call once; the pool is unusable afterwards.
func (p *Pool) Destroy() {
	p.mu.Lock()
	p.draining = true
	p.queue = nil
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

// QueueLen returns the number of jobs waiting to run.
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// worker pops jobs in FIFO order until the pool drains.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.draining {
			p.cond.Wait()
		}
		if p.draining {
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if status := j.Run(); status < 0 {
			log.Printf("pool[%s]: job failed with status %d", p.name, status)
		}
	}
}
