package resolution

import (
	"context"
	"log"

	"github.com/aleck31/crypto-dashboard/internal/queue"
)

// defaultConcurrency is how many records one worker resolves in parallel.
const defaultConcurrency = 5

// Worker binds a resolver to the resolution queue.
type Worker struct {
	q           queue.Queue
	resolver    *Resolver
	concurrency int
}

// NewWorker creates a worker. concurrency <= 0 selects the default.
func NewWorker(q queue.Queue, resolver *Resolver, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Worker{q: q, resolver: resolver, concurrency: concurrency}
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("Worker: consuming resolution queue with concurrency %d", w.concurrency)
	return w.q.Consume(ctx, w.concurrency, w.resolver.HandleMessage)
}
