package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"radar/internal/queue"
)

// MemoryQueue is a queue.Queue for tests. It mirrors the stream semantics of
// queue.RedisQueue inside one process: per-group delivery cursor,
// per-consumer pending lists and explicit acks.
type MemoryQueue struct {
	mu     sync.Mutex
	seq    int64
	topics map[string]*memTopic
	wake   chan struct{}
}

type memTopic struct {
	entries []queue.Entry
	groups  map[string]*memGroup
}

type memGroup struct {
	next    int
	pending map[string][]string
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		topics: make(map[string]*memTopic),
		wake:   make(chan struct{}),
	}
}

func (q *MemoryQueue) topic(name string) *memTopic {
	t, ok := q.topics[name]
	if !ok {
		t = &memTopic{groups: make(map[string]*memGroup)}
		q.topics[name] = t
	}
	return t
}

func (q *MemoryQueue) EnsureGroup(ctx context.Context, topic, group string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := q.topic(topic)
	if _, ok := t.groups[group]; !ok {
		t.groups[group] = &memGroup{pending: make(map[string][]string)}
	}
	return nil
}

func (q *MemoryQueue) Append(ctx context.Context, topic string, values map[string]interface{}) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	id := fmt.Sprintf("%d-0", q.seq)
	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}

	t := q.topic(topic)
	t.entries = append(t.entries, queue.Entry{ID: id, Values: copied})

	close(q.wake)
	q.wake = make(chan struct{})
	return id, nil
}

func (q *MemoryQueue) ReadNew(ctx context.Context, topic, group, consumer string, count int64, block time.Duration) ([]queue.Entry, error) {
	var deadline <-chan time.Time
	if block > 0 {
		timer := time.NewTimer(block)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		entries, err := q.claim(topic, group, consumer, count)
		wake := q.wake
		q.mu.Unlock()

		if err != nil || len(entries) > 0 || deadline == nil {
			return entries, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, nil
		case <-wake:
		}
	}
}

func (q *MemoryQueue) claim(topic, group, consumer string, count int64) ([]queue.Entry, error) {
	t, ok := q.topics[topic]
	if !ok {
		return nil, fmt.Errorf("no such topic %s", topic)
	}
	g, ok := t.groups[group]
	if !ok {
		return nil, fmt.Errorf("NOGROUP no such group %s on %s", group, topic)
	}

	var out []queue.Entry
	for g.next < len(t.entries) && (count <= 0 || int64(len(out)) < count) {
		e := t.entries[g.next]
		g.next++
		g.pending[consumer] = append(g.pending[consumer], e.ID)
		out = append(out, e)
	}
	return out, nil
}

func (q *MemoryQueue) ReadPending(ctx context.Context, topic, group, consumer string, count int64) ([]queue.Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.topics[topic]
	if !ok {
		return nil, fmt.Errorf("no such topic %s", topic)
	}
	g, ok := t.groups[group]
	if !ok {
		return nil, fmt.Errorf("NOGROUP no such group %s on %s", group, topic)
	}

	var out []queue.Entry
	for _, id := range g.pending[consumer] {
		if count > 0 && int64(len(out)) >= count {
			break
		}
		out = append(out, t.lookup(id))
	}
	return out, nil
}

func (t *memTopic) lookup(id string) queue.Entry {
	for _, e := range t.entries {
		if e.ID == id {
			return e
		}
	}
	return queue.Entry{ID: id}
}

func (q *MemoryQueue) Ack(ctx context.Context, topic, group string, ids ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.topics[topic]
	if !ok {
		return nil
	}
	g, ok := t.groups[group]
	if !ok {
		return nil
	}

	acked := make(map[string]bool, len(ids))
	for _, id := range ids {
		acked[id] = true
	}
	for consumer, pending := range g.pending {
		kept := pending[:0]
		for _, id := range pending {
			if !acked[id] {
				kept = append(kept, id)
			}
		}
		g.pending[consumer] = kept
	}
	return nil
}

func (q *MemoryQueue) Len(ctx context.Context, topic string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.topics[topic]; ok {
		return int64(len(t.entries)), nil
	}
	return 0, nil
}

func (q *MemoryQueue) Drop(ctx context.Context, topics ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, name := range topics {
		delete(q.topics, name)
	}
	return nil
}

// PendingCount reports how many entries consumer holds without an ack.
func (q *MemoryQueue) PendingCount(topic, group, consumer string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.topics[topic]
	if !ok {
		return 0
	}
	g, ok := t.groups[group]
	if !ok {
		return 0
	}
	return len(g.pending[consumer])
}
