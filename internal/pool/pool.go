// Package pool provides the bounded-concurrency executor for blocking,
// CPU-bound inference work.
//
// Event-processing goroutines must never run inference themselves: they
// submit a closure and suspend on a single-use result channel while a small
// fixed set of workers does the heavy lifting. The submission queue is
// unbounded, so producers never block; sustained overload grows memory
// instead of applying backpressure.
//
// A Pool is an explicitly constructed value owned by the process bootstrap
// and passed to every component that needs it. The zero value is not usable;
// submitting to a Pool that was not created with New is a programming error
// and panics.
package pool

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrJobLost is returned by Await when the pool was shut down before the job
// produced a result. The job is gone; callers must not retry silently.
var ErrJobLost = errors.New("pool: job lost, no result")

// DefaultWorkers returns the worker count policy: half the host's logical
// CPUs, leaving the other half for the event-processing path, with a floor
// of one.
func DefaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// job pairs the work closure with the hook that unblocks an abandoned
// submitter. Exactly one of run or drop is invoked per job.
type job struct {
	run  func()
	drop func()
}

// Pool runs blocking work items on a fixed set of worker goroutines fed by a
// single dispatcher draining an unbounded queue.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []job
	closed bool

	work chan job
	done chan struct{}
	wg   sync.WaitGroup

	completed atomic.Uint64
	closeOnce sync.Once
}

// New creates a Pool with the given number of workers. Worker counts below
// one are clamped to one.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		work: make(chan job),
		done: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	p.wg.Add(1)
	go p.dispatch()
	return p
}

// Submit enqueues fn for execution on the pool and returns a single-use
// result channel. The channel receives exactly one value when fn completes,
// or is closed without a value if the pool shuts down before fn runs. Use
// Await to decode the two cases.
//
// Submit never blocks: the queue is unbounded.
func Submit[T any](p *Pool, fn func() T) <-chan T {
	ch := make(chan T, 1)
	j := job{
		run: func() {
			ch <- fn()
			close(ch)
		},
		drop: func() { close(ch) },
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		j.drop()
		return ch
	}
	p.queue = append(p.queue, j)
	p.mu.Unlock()
	p.cond.Signal()
	return ch
}

// Await blocks until the job behind ch resolves. It returns ErrJobLost when
// the pool was shut down before the job produced a result.
func Await[T any](ch <-chan T) (T, error) {
	v, ok := <-ch
	if !ok {
		var zero T
		return zero, ErrJobLost
	}
	return v, nil
}

// Completed returns the total number of jobs the pool has finished since
// creation.
func (p *Pool) Completed() uint64 {
	return p.completed.Load()
}

// Close shuts the pool down. Jobs already dispatched to a worker run to
// completion; jobs still queued are dropped, unblocking their submitters
// with ErrJobLost. Close waits for the workers to drain and is safe to call
// more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
		p.cond.Signal()
		p.wg.Wait()
	})
}

// dispatch is the single goroutine moving jobs from the unbounded queue to
// the workers. On shutdown it drops everything still queued.
func (p *Pool) dispatch() {
	defer p.wg.Done()
	defer close(p.work)

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			rest := p.queue
			p.queue = nil
			p.mu.Unlock()
			for _, j := range rest {
				j.drop()
			}
			return
		}
		j := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		select {
		case p.work <- j:
		case <-p.done:
			j.drop()
			p.mu.Lock()
			rest := p.queue
			p.queue = nil
			p.mu.Unlock()
			for _, r := range rest {
				r.drop()
			}
			return
		}
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.work {
		j.run()
		p.completed.Add(1)
	}
}
