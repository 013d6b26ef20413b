package worker

import (
	"context"
	"log"
	"sync"
)

// Job is one capture cycle run off the interactive path.
type Job func(ctx context.Context)

type job struct {
	ctx context.Context
	fn  Job
}

// Pool is a fixed-size worker pool with a 1-slot input queue (strict
// back-pressure). Capture cycles involve network uploads of unbounded
// duration, so the queue intentionally refuses work instead of buffering it:
// the event loop reports "busy" rather than piling up captures.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
}

// New creates a worker pool. Size defaults to 1 when size<=0: capture
// cycles grab the screen and own the clipboard, so one at a time is the
// norm.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				j.fn(j.ctx)
			}
		}()
	}
}

// Submit enqueues a job if the single-slot queue is free. Returns false if
// dropped.
func (p *Pool) Submit(ctx context.Context, fn Job) bool {
	select {
	case p.jobs <- job{ctx: ctx, fn: fn}:
		return true
	default:
		log.Printf("worker: queue full, job dropped")
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
