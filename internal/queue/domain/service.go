package domain

import (
	"context"
	"errors"
)

// Service owns every queue stored in the database.
type Service interface {
	// Open returns a handle on one queue using the given delivery policy.
	Open(name string, cfg ConfigFunc) Queue
	// Enqueue stores all messages atomically: either every message is
	// written or none is.
	Enqueue(ctx context.Context, msgs []OutgoingMessage) ([]Message, error)
	ListDeadLetters(ctx context.Context, filter DeadLetterFilter) ([]DeadLetter, error)
	Stats(ctx context.Context, queue string) (Stats, error)
}

// Queue is a durable at-least-once buffer with leased delivery.
type Queue interface {
	Name() string
	Config() Config
	// Receive leases up to max visible messages; max <= 0 means BatchSize.
	Receive(ctx context.Context, max int) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	// Retry releases the lease for redelivery, or dead-letters the message
	// when its deliveries are used up.
	Retry(ctx context.Context, msg Message, cause error) error
	DeadLetter(ctx context.Context, msg Message, reason DeadLetterReason, cause error) error
	// Complete acknowledges every message of batch not named by report and
	// applies each failure's outcome.
	Complete(ctx context.Context, batch []Message, report BatchReport) (CompletionSummary, error)
}

var (
	ErrLeaseLost      = errors.New("queue_lease_lost")
	ErrEmptyQueueName = errors.New("queue_name_empty")
	ErrEmptyBody      = errors.New("queue_message_body_empty")
)
