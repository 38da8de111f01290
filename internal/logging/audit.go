package logging

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const previewRunes = 100

// Audit writes forensic events as JSON lines. Inputs are stored as a hash plus
// a short preview, never in full.
type Audit struct {
	logger *slog.Logger
	closer io.Closer
	mu     sync.Mutex
}

// OpenAudit appends to path. An empty path discards every event.
func OpenAudit(path, service string) (*Audit, error) {
	if path == "" {
		return NewAudit(io.Discard, service), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	a := NewAudit(f, service)
	a.closer = f
	return a, nil
}

func NewAudit(w io.Writer, service string) *Audit {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Audit{logger: slog.New(handler).With("service_name", service)}
}

// Event records eventType. input may be empty; attrs are key/value pairs.
func (a *Audit) Event(ctx context.Context, level slog.Level, eventType, input string, attrs ...any) {
	if a == nil {
		return
	}
	args := []any{"event_type", eventType}
	if input != "" {
		args = append(args, "input_hash", HashInput(input), "input_preview", preview(input))
	}
	args = append(args, attrs...)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.Log(ctx, level, eventType, args...)
}

func (a *Audit) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func HashInput(input string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(input)))
}

func preview(input string) string {
	r := []rune(input)
	if len(r) <= previewRunes {
		return input
	}
	return string(r[:previewRunes]) + "..."
}
