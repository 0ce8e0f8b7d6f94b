// Package queue provides the at-least-once resolution queue decoupling
// ingestion from resolution. Messages carry the minimal record pointer, not
// the payload; the resolution stage re-reads the record from storage by id.
package queue

import (
	"context"

	"github.com/aleck31/crypto-dashboard/internal/models"
)

// Message points at one raw record awaiting resolution.
type Message struct {
	ID         string `json:"id"`
	RecordType string `json:"record_type"` // models.RecordTypeProjectInfo | models.RecordTypeMarketInfo
	RecordID   string `json:"record_id"`
	// Deliveries counts delivery attempts including the current one.
	Deliveries int `json:"deliveries"`
}

// Handler processes one delivered message. A non-nil error triggers
// redelivery until the delivery cap, after which the message is
// dead-lettered.
type Handler func(ctx context.Context, msg Message) error

// Queue is the at-least-once channel between ingestion and resolution.
type Queue interface {
	// Publish enqueues a record pointer.
	Publish(ctx context.Context, recordType, recordID string) error
	// Consume delivers messages to the handler with at most `concurrency`
	// in-flight handlers, blocking until the context is cancelled.
	Consume(ctx context.Context, concurrency int, h Handler) error
	// DeadLetters returns up to limit messages that exhausted their
	// delivery cap, for operator inspection.
	DeadLetters(ctx context.Context, limit int) ([]Message, error)
	Close() error
}

// NewMessage builds a message for a raw record pointer.
func NewMessage(recordType, recordID string) Message {
	return Message{RecordType: recordType, RecordID: recordID}
}

// ValidRecordType guards the record-type tag on incoming messages.
func ValidRecordType(t string) bool {
	return t == models.RecordTypeProjectInfo || t == models.RecordTypeMarketInfo
}
