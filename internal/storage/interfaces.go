package storage

import (
	"context"
	"database/sql"

	"radar/internal/types"
)

type StorageInterface interface {
	GetConnection() *sql.DB
	Rejections() RejectionStore
	Digests() DigestStore
	Close(ctx context.Context) error
}

type RejectionStore interface {
	// Record is idempotent per document; a replay overwrites the marker.
	Record(ctx context.Context, rejection types.Rejection) error
	// Get returns nil when docID was never rejected.
	Get(ctx context.Context, docID string) (*types.Rejection, error)
	Count(ctx context.Context) (int, error)
}

type DigestStore interface {
	Insert(ctx context.Context, digest *types.Digest) error
	ListRecent(ctx context.Context, limit int) ([]types.Digest, error)
	// Latest returns nil when no digest was stored yet.
	Latest(ctx context.Context) (*types.Digest, error)
}
