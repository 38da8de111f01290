package testutil_test

import (
	"context"
	"testing"
	"time"

	"radar/internal/queue"
	"radar/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	group    = "agent_group"
	consumer = "agent_worker_1"
)

func TestMemoryQueue_PendingUntilAck(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewMemoryQueue()
	require.NoError(t, q.EnsureGroup(ctx, queue.PendingTopic, group))
	require.NoError(t, q.EnsureGroup(ctx, queue.PendingTopic, group))

	first, err := q.Append(ctx, queue.PendingTopic, map[string]interface{}{"id": "a"})
	require.NoError(t, err)
	_, err = q.Append(ctx, queue.PendingTopic, map[string]interface{}{"id": "b"})
	require.NoError(t, err)

	entries, err := q.ReadNew(ctx, queue.PendingTopic, group, consumer, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, first, entries[0].ID)

	pending, err := q.ReadPending(ctx, queue.PendingTopic, group, consumer, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first, pending[0].ID)

	require.NoError(t, q.Ack(ctx, queue.PendingTopic, group, first))
	pending, err = q.ReadPending(ctx, queue.PendingTopic, group, consumer, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	entries, err = q.ReadNew(ctx, queue.PendingTopic, group, consumer, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Values["id"])

	n, err := q.Len(ctx, queue.PendingTopic)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryQueue_ReadNewBlocksUntilAppend(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewMemoryQueue()
	require.NoError(t, q.EnsureGroup(ctx, queue.PendingTopic, group))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = q.Append(ctx, queue.PendingTopic, map[string]interface{}{"id": "late"})
	}()

	entries, err := q.ReadNew(ctx, queue.PendingTopic, group, consumer, 10, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "late", entries[0].Values["id"])
}

func TestMemoryQueue_ReadNewTimesOut(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewMemoryQueue()
	require.NoError(t, q.EnsureGroup(ctx, queue.PendingTopic, group))

	start := time.Now()
	entries, err := q.ReadNew(ctx, queue.PendingTopic, group, consumer, 10, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestMemoryQueue_UnknownGroup(t *testing.T) {
	ctx := context.Background()
	q := testutil.NewMemoryQueue()
	_, err := q.Append(ctx, queue.PendingTopic, map[string]interface{}{"id": "a"})
	require.NoError(t, err)

	_, err = q.ReadNew(ctx, queue.PendingTopic, "missing", consumer, 1, 0)
	assert.Error(t, err)
}
