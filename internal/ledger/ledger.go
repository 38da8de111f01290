// Package ledger remembers which documents reached a terminal state so a
// redelivered or re-ingested document is skipped instead of reprocessed.
package ledger

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"radar/internal/types"
)

const (
	DefaultPrefix = "processed:"
	DefaultTTL    = 30 * 24 * time.Hour
)

type Store interface {
	Exists(ctx context.Context, keys ...string) (int64, error)
	// Get returns "" when key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type Config struct {
	Prefix string
	TTL    time.Duration
}

type Ledger struct {
	store  Store
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func New(store Store, config Config, logger *slog.Logger) *Ledger {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Ledger{
		store:  store,
		prefix: config.Prefix,
		ttl:    config.TTL,
		logger: logger.With("component", "ledger"),
	}
}

// Keys returns the id key and the title fingerprint key for doc.
func (l *Ledger) Keys(doc types.Envelope) []string {
	return []string{l.idKey(doc.ID), l.titleKey(doc.Title)}
}

func (l *Ledger) idKey(id string) string {
	return l.prefix + id
}

func (l *Ledger) titleKey(title string) string {
	return l.prefix + "fp:" + Fingerprint(title)
}

// IsDuplicate reports whether doc was already handled, by id or by title.
// When the store is unreachable the document is treated as new: a lost
// ledger costs a reprocess, never a dropped document.
func (l *Ledger) IsDuplicate(ctx context.Context, doc types.Envelope) bool {
	n, err := l.store.Exists(ctx, l.Keys(doc)...)
	if err != nil {
		l.logger.Warn("Ledger unavailable, treating document as new", "id", doc.ID, "error", err)
		return false
	}
	return n > 0
}

// MarkProcessed sets both markers. Each marker holds the other's key, so
// either one is enough to forget the document later.
func (l *Ledger) MarkProcessed(ctx context.Context, doc types.Envelope) error {
	idKey, titleKey := l.idKey(doc.ID), l.titleKey(doc.Title)
	for _, pair := range [][2]string{{idKey, titleKey}, {titleKey, idKey}} {
		key, linked := pair[0], pair[1]
		if err := l.store.Set(ctx, key, linked, l.ttl); err != nil {
			return fmt.Errorf("failed to mark %s: %w", key, err)
		}
	}
	return nil
}

// Forget removes both markers of doc so it can be processed again. doc may
// carry only an id or only a title.
func (l *Ledger) Forget(ctx context.Context, doc types.Envelope) error {
	switch {
	case doc.ID == "" && doc.Title == "":
		return fmt.Errorf("forget needs an id or a title")
	case doc.Title == "":
		return l.ForgetID(ctx, doc.ID)
	case doc.ID == "":
		return l.ForgetTitle(ctx, doc.Title)
	}
	return l.forget(ctx, doc.ID, l.Keys(doc)...)
}

// ForgetID forgets the document marked under id, along with its title marker.
func (l *Ledger) ForgetID(ctx context.Context, id string) error {
	return l.forgetLinked(ctx, id, l.idKey(id))
}

// ForgetTitle forgets the document marked under title, along with its id marker.
func (l *Ledger) ForgetTitle(ctx context.Context, title string) error {
	return l.forgetLinked(ctx, title, l.titleKey(title))
}

func (l *Ledger) forgetLinked(ctx context.Context, label, key string) error {
	linked, err := l.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", label, err)
	}
	keys := []string{key}
	if strings.HasPrefix(linked, l.prefix) {
		keys = append(keys, linked)
	}
	return l.forget(ctx, label, keys...)
}

func (l *Ledger) forget(ctx context.Context, label string, keys ...string) error {
	n, err := l.store.Delete(ctx, keys...)
	if err != nil {
		return fmt.Errorf("failed to forget %s: %w", label, err)
	}
	l.logger.Info("Forgot document", "document", label, "removed", n)
	return nil
}

// Reset forgets every processed marker.
func (l *Ledger) Reset(ctx context.Context) (int, error) {
	n, err := l.store.DeletePrefix(ctx, l.prefix)
	if err != nil {
		return n, fmt.Errorf("failed to reset ledger: %w", err)
	}
	l.logger.Info("Ledger reset", "removed", n)
	return n, nil
}

// Fingerprint normalizes a title (NFKC, case fold, collapsed whitespace) and
// hashes it. Distinct papers sharing a title collide.
func Fingerprint(title string) string {
	normalized := norm.NFKC.String(title)
	normalized = cases.Fold().String(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum)
}
