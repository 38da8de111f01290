package status_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"radar/internal/status"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_BeginRelease(t *testing.T) {
	store := status.NewMemoryStore()
	s := status.New(store, nil)
	ctx := context.Background()

	assert.Equal(t, status.Idle, s.Current(ctx))

	release := s.Begin(ctx)
	assert.Equal(t, status.Working, s.Current(ctx))
	release()
	assert.Equal(t, status.Idle, s.Current(ctx))
}

func TestStatus_ReleaseOnPanic(t *testing.T) {
	store := status.NewMemoryStore()
	s := status.New(store, nil)

	func() {
		defer func() { _ = recover() }()
		defer s.Begin(context.Background())()
		panic("stage blew up")
	}()

	assert.Equal(t, []status.State{status.Working, status.Idle}, store.History())
}

func TestStatus_ReleaseAfterCancel(t *testing.T) {
	store := status.NewMemoryStore()
	s := status.New(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	release := s.Begin(ctx)
	cancel()
	release()

	assert.Equal(t, status.Idle, s.Current(context.Background()))
}

func TestRedisStore_StateAndProgress(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := status.NewRedisStore(rdb)

	state, err := store.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, status.Idle, state, "absent status reads as idle")

	require.NoError(t, store.SetState(ctx, status.Working))
	state, err = store.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, status.Working, state)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordProcessed(ctx, status.Progress{DocID: "2405.1", At: at}))
	p, err := store.LastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2405.1", p.DocID)
	assert.True(t, at.Equal(p.At))
}

func TestTrigger_Coalesces(t *testing.T) {
	tr := status.NewTrigger()

	assert.True(t, tr.Notify(status.KindBatch))
	assert.False(t, tr.Notify(status.KindBatch))
	assert.True(t, tr.Notify(status.KindCurate))

	<-tr.Batches()
	assert.True(t, tr.Notify(status.KindBatch))
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, status.KindBatch, status.ParseKind("process_all"))
	assert.Equal(t, status.KindBatch, status.ParseKind("ingest"))
	assert.Equal(t, status.KindCurate, status.ParseKind(" Curate "))
	assert.Equal(t, status.KindCurate, status.ParseKind("digest"))
}

func TestRedisStore_Listen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := status.NewRedisStore(rdb)
	tr := status.NewTrigger()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Listen(ctx, tr, slog.Default()) }()

	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("")) > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, store.Publish(context.Background(), "process_all"))

	select {
	case <-tr.Batches():
	case <-time.After(time.Second):
		t.Fatal("trigger not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
