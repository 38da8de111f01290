// Package status publishes whether the consumer is busy and carries manual
// triggers from operators to the consumer.
package status

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type State string

const (
	Idle    State = "idle"
	Working State = "working"
)

type Progress struct {
	DocID string
	At    time.Time
}

type Store interface {
	SetState(ctx context.Context, state State) error
	// GetState returns Idle when nothing was ever written.
	GetState(ctx context.Context) (State, error)
	RecordProcessed(ctx context.Context, progress Progress) error
	LastProcessed(ctx context.Context) (Progress, error)
}

// Status is the shared idle/working flag. Writes are last-write-wins; a failed
// write is logged and mirrored locally so the process itself never lies.
type Status struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	local State
}

func New(store Store, logger *slog.Logger) *Status {
	if logger == nil {
		logger = slog.Default()
	}
	return &Status{
		store:  store,
		logger: logger.With("component", "status"),
		local:  Idle,
	}
}

// Begin marks the consumer working and returns the func that marks it idle
// again. Callers defer it so every exit path, panics included, resets the flag.
func (s *Status) Begin(ctx context.Context) func() {
	s.set(ctx, Working)
	return func() {
		// ctx may already be cancelled during shutdown
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.set(releaseCtx, Idle)
	}
}

func (s *Status) set(ctx context.Context, state State) {
	s.mu.Lock()
	s.local = state
	s.mu.Unlock()

	if err := s.store.SetState(ctx, state); err != nil {
		s.logger.Warn("Failed to publish status", "state", state, "error", err)
	}
}

func (s *Status) Current(ctx context.Context) State {
	state, err := s.store.GetState(ctx)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.local
	}
	return state
}

func (s *Status) Processed(ctx context.Context, docID string) {
	if err := s.store.RecordProcessed(ctx, Progress{DocID: docID, At: time.Now().UTC()}); err != nil {
		s.logger.Debug("Failed to record progress", "id", docID, "error", err)
	}
}

func (s *Status) LastProcessed(ctx context.Context) (Progress, error) {
	return s.store.LastProcessed(ctx)
}

// MemoryStore keeps status inside the process.
type MemoryStore struct {
	mu       sync.Mutex
	state    State
	progress Progress
	history  []State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SetState(ctx context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.history = append(m.history, state)
	return nil
}

func (m *MemoryStore) GetState(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == "" {
		return Idle, nil
	}
	return m.state, nil
}

func (m *MemoryStore) RecordProcessed(ctx context.Context, progress Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = progress
	return nil
}

func (m *MemoryStore) LastProcessed(ctx context.Context) (Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress, nil
}

// History returns every state written, oldest first.
func (m *MemoryStore) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.history...)
}
