package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	streamName  = "RESOLUTION"
	subjectMain = "resolution.pending"
	subjectDead = "resolution.dead"
	queueGroup  = "resolution-workers"
)

// NATSQueue implements Queue on a NATS JetStream work-queue stream with
// explicit acks. Redelivery is handled by JetStream (AckWait as the
// visibility timeout, MaxDeliver as the cap); a message that exhausts its
// deliveries is republished to the dead-letter subject and acked.
type NATSQueue struct {
	nc         *nats.Conn
	js         nats.JetStreamContext
	maxDeliver int
	ackWait    time.Duration
}

// NATSConfig tunes the JetStream queue.
type NATSConfig struct {
	URL        string
	MaxDeliver int
	// AckWait is the visibility timeout; it must exceed the worst-case
	// resolution time (LLM rounds included).
	AckWait time.Duration
}

// NewNATSQueue connects to the NATS server and ensures the streams exist.
func NewNATSQueue(cfg NATSConfig) (*NATSQueue, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 3
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 5 * time.Minute
	}

	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	for _, sc := range []*nats.StreamConfig{
		{Name: streamName, Subjects: []string{subjectMain}, Retention: nats.WorkQueuePolicy},
		{Name: streamName + "_DEAD", Subjects: []string{subjectDead}},
	} {
		if _, err := js.AddStream(sc); err != nil && err != nats.ErrStreamNameAlreadyInUse {
			nc.Close()
			return nil, fmt.Errorf("failed to ensure stream %s: %w", sc.Name, err)
		}
	}

	log.Printf("Connected to NATS server: %s (stream %s)", cfg.URL, streamName)
	return &NATSQueue{nc: nc, js: js, maxDeliver: cfg.MaxDeliver, ackWait: cfg.AckWait}, nil
}

var _ Queue = (*NATSQueue)(nil)

func (q *NATSQueue) Publish(ctx context.Context, recordType, recordID string) error {
	msg := NewMessage(recordType, recordID)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}
	if _, err := q.js.Publish(subjectMain, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subjectMain, err)
	}
	return nil
}

func (q *NATSQueue) Consume(ctx context.Context, concurrency int, h Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	// Bound in-flight handlers with a semaphore; JetStream delivers async.
	sem := make(chan struct{}, concurrency)

	sub, err := q.js.QueueSubscribe(subjectMain, queueGroup, func(m *nats.Msg) {
		sem <- struct{}{}
		defer func() { <-sem }()
		q.handle(ctx, m, h)
	},
		nats.ManualAck(),
		nats.AckWait(q.ackWait),
		nats.MaxDeliver(q.maxDeliver),
		nats.Durable(queueGroup),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subjectMain, err)
	}
	defer func() {
		if err := sub.Drain(); err != nil {
			log.Printf("Queue: error draining subscription: %v", err)
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (q *NATSQueue) handle(ctx context.Context, m *nats.Msg, h Handler) {
	var msg Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		log.Printf("Queue: unparsable message on %s, dead-lettering: %v", m.Subject, err)
		q.deadLetter(m.Data)
		_ = m.Ack()
		return
	}
	if meta, err := m.Metadata(); err == nil {
		msg.Deliveries = int(meta.NumDelivered)
	}

	if err := h(ctx, msg); err != nil {
		if msg.Deliveries >= q.maxDeliver {
			log.Printf("Queue: message %s %s exhausted %d deliveries, dead-lettering: %v",
				msg.RecordType, msg.RecordID, msg.Deliveries, err)
			q.deadLetter(m.Data)
			_ = m.Ack()
			return
		}
		log.Printf("Queue: handler failed for %s %s (delivery %d/%d), NAKing: %v",
			msg.RecordType, msg.RecordID, msg.Deliveries, q.maxDeliver, err)
		_ = m.Nak()
		return
	}
	_ = m.Ack()
}

func (q *NATSQueue) deadLetter(data []byte) {
	if _, err := q.js.Publish(subjectDead, data); err != nil {
		log.Printf("Queue: failed to publish dead letter: %v", err)
	}
}

// DeadLetters fetches up to limit messages from the dead-letter stream
// without consuming them.
func (q *NATSQueue) DeadLetters(_ context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	sub, err := q.js.PullSubscribe(subjectDead, "",
		nats.BindStream(streamName+"_DEAD"))
	if err != nil {
		return nil, fmt.Errorf("failed to open dead-letter subscription: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	raw, err := sub.Fetch(limit, nats.MaxWait(2*time.Second))
	if err != nil && err != nats.ErrTimeout {
		return nil, fmt.Errorf("failed to fetch dead letters: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			continue
		}
		out = append(out, msg)
		// Inspection only: leave the message unacked so it stays visible.
	}
	return out, nil
}

func (q *NATSQueue) Close() error {
	q.nc.Close()
	return nil
}
