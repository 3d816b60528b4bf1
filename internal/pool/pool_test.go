package pool_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/internal/pool"
)

func TestSubmit_AllJobsResolve(t *testing.T) {
	p := pool.New(4)
	defer p.Close()

	const n = 50
	handles := make([]<-chan int, n)
	for i := range n {
		handles[i] = pool.Submit(p, func() int { return i * 2 })
	}

	for i, h := range handles {
		got, err := pool.Await(h)
		if err != nil {
			t.Fatalf("job %d: unexpected error: %v", i, err)
		}
		if got != i*2 {
			t.Errorf("job %d: got %d, want %d", i, got, i*2)
		}
	}

	if c := p.Completed(); c != n {
		t.Errorf("completed counter: got %d, want %d", c, n)
	}
}

func TestSubmit_ConcurrentProducers(t *testing.T) {
	p := pool.New(2)
	defer p.Close()

	const producers = 8
	const perProducer = 25

	var wg sync.WaitGroup
	errs := make(chan error, producers)
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				if _, err := pool.Await(pool.Submit(p, func() bool { return true })); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	if c := p.Completed(); c != producers*perProducer {
		t.Errorf("completed counter: got %d, want %d", c, producers*perProducer)
	}
}

func TestSubmit_AfterClose_ReturnsJobLost(t *testing.T) {
	p := pool.New(1)
	p.Close()

	_, err := pool.Await(pool.Submit(p, func() int { return 1 }))
	if !errors.Is(err, pool.ErrJobLost) {
		t.Fatalf("got %v, want ErrJobLost", err)
	}
}

func TestClose_DropsQueuedJobs(t *testing.T) {
	p := pool.New(1)

	// Occupy the single worker so further jobs stay queued.
	release := make(chan struct{})
	running := make(chan struct{})
	busy := pool.Submit(p, func() int {
		close(running)
		<-release
		return 1
	})
	<-running

	queued := pool.Submit(p, func() int { return 2 })

	// Close in the background: it waits for the busy job to finish.
	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	// The queued job must resolve as lost even though the pool is still
	// draining the in-flight one.
	if _, err := pool.Await(queued); !errors.Is(err, pool.ErrJobLost) {
		t.Fatalf("queued job: got %v, want ErrJobLost", err)
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after in-flight job finished")
	}

	// The in-flight job ran to completion.
	got, err := pool.Await(busy)
	if err != nil {
		t.Fatalf("busy job: unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("busy job: got %d, want 1", got)
	}
}

func TestClose_Idempotent(t *testing.T) {
	p := pool.New(2)
	p.Close()
	p.Close()
}

func TestDefaultWorkers_AtLeastOne(t *testing.T) {
	if pool.DefaultWorkers() < 1 {
		t.Fatalf("DefaultWorkers() = %d, want >= 1", pool.DefaultWorkers())
	}
}
