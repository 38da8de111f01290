package status

import "strings"

const TriggerChannel = "agent:trigger"

type Kind string

const (
	KindBatch  Kind = "batch"
	KindCurate Kind = "curate"
)

// Trigger coalesces manual triggers: while one of a kind is waiting to be
// served, further triggers of that kind are dropped.
type Trigger struct {
	batch  chan struct{}
	curate chan struct{}
}

func NewTrigger() *Trigger {
	return &Trigger{
		batch:  make(chan struct{}, 1),
		curate: make(chan struct{}, 1),
	}
}

// ParseKind maps a control message to a trigger kind. Unknown messages
// ("process_all", "ingest", ...) request a batch.
func ParseKind(msg string) Kind {
	switch strings.ToLower(strings.TrimSpace(msg)) {
	case "curate", "digest":
		return KindCurate
	default:
		return KindBatch
	}
}

// Notify queues a trigger and reports whether it was accepted rather than
// coalesced into one already waiting.
func (t *Trigger) Notify(kind Kind) bool {
	ch := t.batch
	if kind == KindCurate {
		ch = t.curate
	}
	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}

func (t *Trigger) Batches() <-chan struct{} {
	return t.batch
}

func (t *Trigger) Curations() <-chan struct{} {
	return t.curate
}
