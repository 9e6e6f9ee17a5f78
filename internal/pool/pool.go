package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by futures submitted after Close
var ErrClosed = errors.New("worker pool is closed")

// Pool runs submitted tasks on a fixed set of workers
type Pool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts a pool with the given number of workers
func New(workers int) *Pool {
	if workers <= 0 {
		workers = 4 // default reasonable limit
	}
	p := &Pool{
		workers: workers,
		tasks:   make(chan func(), workers*4),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.workers
}

// worker processes tasks until the pool is closed
func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Close stops accepting work and waits for queued tasks to finish
func (p *Pool) Close() {
	p.Shutdown()
	p.wg.Wait()
}

// Shutdown stops accepting work without waiting. Queued and running tasks
// still finish on their workers, which exit once the queue is drained.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
}

// Future is the pending result of a submitted task
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Submit queues fn on the pool. It blocks while the queue is full.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		f.err = ErrClosed
		close(f.done)
		return f
	}

	p.tasks <- func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		f.value, f.err = fn()
	}
	return f
}

// Done is closed once the task has finished
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait returns the task's result, or ctx's error if ctx ends first. A
// cancelled wait does not stop the task; it runs to completion in its worker
// and the result is dropped.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
