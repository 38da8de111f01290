// Package queue is the durable, log-based job queue the consumer reads from.
// Entries stay pending for the consumer that claimed them until acknowledged.
package queue

import (
	"context"
	"time"
)

const (
	PendingTopic  = "papers:pending"
	AnalyzedTopic = "papers:analyzed"
)

type Entry struct {
	ID     string
	Values map[string]interface{}
}

type Queue interface {
	// EnsureGroup creates the consumer group and the topic if missing. It is
	// safe to call repeatedly.
	EnsureGroup(ctx context.Context, topic, group string) error
	Append(ctx context.Context, topic string, values map[string]interface{}) (string, error)
	// ReadNew claims entries never delivered to the group, waiting up to block.
	ReadNew(ctx context.Context, topic, group, consumer string, count int64, block time.Duration) ([]Entry, error)
	// ReadPending returns entries delivered to consumer but not yet acknowledged.
	ReadPending(ctx context.Context, topic, group, consumer string, count int64) ([]Entry, error)
	Ack(ctx context.Context, topic, group string, ids ...string) error
	Len(ctx context.Context, topic string) (int64, error)
	Drop(ctx context.Context, topics ...string) error
}
