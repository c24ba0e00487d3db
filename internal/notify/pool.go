package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("notice pool stopped")

// Pool manages a fixed number of worker goroutines that deliver notices, so
// slow transports never hold up the event bus.
type Pool struct {
	numWorkers int
	jobs       chan Notice
	deliverer  *Deliverer
	logger     *slog.Logger
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(numWorkers int, deliverer *Deliverer, logger *slog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan Notice, numWorkers*2),
		deliverer:  deliverer,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They read from the jobs channel
// until it is closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("notice pool started", "num_workers", p.numWorkers)
}

// Submit queues n for delivery. It blocks while every worker is busy and the
// buffer is full.
func (p *Pool) Submit(ctx context.Context, n Notice) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the jobs channel and waits for queued notices to be delivered.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("notice pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for n := range p.jobs {
		select {
		case <-ctx.Done():
			return
		default:
			p.deliverer.Deliver(ctx, n)
		}
	}
}
