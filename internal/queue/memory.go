package queue

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// MemoryQueue is a channel-backed Queue with the same retry and dead-letter
// semantics as the NATS implementation. It backs tests and local runs.
type MemoryQueue struct {
	maxDeliver int
	msgs       chan Message

	mu   sync.Mutex
	dead []Message

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemoryQueue creates an in-process queue. maxDeliver caps delivery
// attempts per message before dead-lettering.
func NewMemoryQueue(buffer, maxDeliver int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 1024
	}
	if maxDeliver <= 0 {
		maxDeliver = 3
	}
	return &MemoryQueue{
		maxDeliver: maxDeliver,
		msgs:       make(chan Message, buffer),
		closed:     make(chan struct{}),
	}
}

var _ Queue = (*MemoryQueue)(nil)

func (q *MemoryQueue) Publish(ctx context.Context, recordType, recordID string) error {
	msg := NewMessage(recordType, recordID)
	msg.ID = uuid.New().String()
	select {
	case q.msgs <- msg:
		return nil
	case <-q.closed:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, concurrency int, h Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.closed:
					return
				case msg := <-q.msgs:
					q.deliver(ctx, msg, h)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (q *MemoryQueue) deliver(ctx context.Context, msg Message, h Handler) {
	msg.Deliveries++
	if err := h(ctx, msg); err == nil {
		return
	} else if msg.Deliveries >= q.maxDeliver {
		log.Printf("Queue: message %s (%s %s) exhausted %d deliveries, dead-lettering: %v",
			msg.ID, msg.RecordType, msg.RecordID, msg.Deliveries, err)
		q.mu.Lock()
		q.dead = append(q.dead, msg)
		q.mu.Unlock()
		return
	} else {
		log.Printf("Queue: handler failed for message %s (delivery %d/%d), requeueing: %v",
			msg.ID, msg.Deliveries, q.maxDeliver, err)
	}
	select {
	case q.msgs <- msg:
	default:
		// Queue full: drop to dead letters rather than block the worker.
		q.mu.Lock()
		q.dead = append(q.dead, msg)
		q.mu.Unlock()
	}
}

func (q *MemoryQueue) DeadLetters(_ context.Context, limit int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.dead))
	copy(out, q.dead)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}
