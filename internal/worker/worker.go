package worker

import (
	"context"
	"log/slog"
	"sync"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool fans jobs out to a fixed set of workers over a buffered channel.
type Pool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	wg         sync.WaitGroup
}

func NewPool[T any](numWorkers int, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	return &Pool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

func (p *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor(ctx, job); err != nil {
				slog.Error("worker job failed", "error", err)
			}
		}
	}
}

// Submit enqueues a job. Blocks when the buffer is full.
func (p *Pool[T]) Submit(job T) {
	p.jobs <- job
}

// TrySubmit enqueues a job without blocking; reports whether it was accepted.
func (p *Pool[T]) TrySubmit(job T) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the job channel and waits for in-flight work to drain.
func (p *Pool[T]) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
