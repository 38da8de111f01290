package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"radar/internal/storage"
	"radar/internal/types"
)

type rejectionStore struct {
	db *sql.DB
}

func newRejectionStore(db *sql.DB) storage.RejectionStore {
	return &rejectionStore{db: db}
}

func (s *rejectionStore) Record(ctx context.Context, rej types.Rejection) error {
	details, err := json.Marshal(rej.Details)
	if err != nil {
		return fmt.Errorf("failed to encode rejection details: %w", err)
	}
	if rej.RejectedAt.IsZero() {
		rej.RejectedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO rejections (doc_id, title, stage, reason, details, rejected_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			stage = excluded.stage,
			reason = excluded.reason,
			details = excluded.details,
			rejected_at = excluded.rejected_at
	`

	_, err = s.db.ExecContext(ctx, query, rej.DocID, rej.Title, rej.Stage, rej.Reason, string(details), rej.RejectedAt)
	if err != nil {
		return fmt.Errorf("failed to record rejection: %w", err)
	}
	return nil
}

func (s *rejectionStore) Get(ctx context.Context, docID string) (*types.Rejection, error) {
	var (
		rej     types.Rejection
		details string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT doc_id, title, stage, reason, details, rejected_at FROM rejections WHERE doc_id = ?`, docID,
	).Scan(&rej.DocID, &rej.Title, &rej.Stage, &rej.Reason, &details, &rej.RejectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rejection: %w", err)
	}

	if err := json.Unmarshal([]byte(details), &rej.Details); err != nil {
		return nil, fmt.Errorf("failed to decode rejection details: %w", err)
	}
	return &rej, nil
}

func (s *rejectionStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rejections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rejections: %w", err)
	}
	return count, nil
}
