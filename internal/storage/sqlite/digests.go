package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"radar/internal/storage"
	"radar/internal/types"
)

type digestStore struct {
	db *sql.DB
}

func newDigestStore(db *sql.DB) storage.DigestStore {
	return &digestStore{db: db}
}

func (s *digestStore) Insert(ctx context.Context, d *types.Digest) error {
	highlighted, _ := json.Marshal(nonNil(d.Highlighted))
	resultIDs, _ := json.Marshal(nonNil(d.ResultIDs))

	query := `
		INSERT INTO digests (id, headline, summary, highlighted, result_ids, caveat, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query, d.ID, d.Headline, d.Summary, string(highlighted), string(resultIDs), d.Caveat, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert digest: %w", err)
	}
	return nil
}

func (s *digestStore) ListRecent(ctx context.Context, limit int) ([]types.Digest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, headline, summary, highlighted, result_ids, caveat, created_at
		FROM digests
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var digests []types.Digest
	for rows.Next() {
		d, err := scanDigest(rows)
		if err != nil {
			return nil, err
		}
		digests = append(digests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate digests: %w", err)
	}
	return digests, nil
}

func (s *digestStore) Latest(ctx context.Context) (*types.Digest, error) {
	digests, err := s.ListRecent(ctx, 1)
	if err != nil || len(digests) == 0 {
		return nil, err
	}
	return &digests[0], nil
}

func scanDigest(rows *sql.Rows) (types.Digest, error) {
	var (
		d                      types.Digest
		highlighted, resultIDs string
	)
	if err := rows.Scan(&d.ID, &d.Headline, &d.Summary, &highlighted, &resultIDs, &d.Caveat, &d.CreatedAt); err != nil {
		return d, fmt.Errorf("failed to scan digest: %w", err)
	}
	if err := json.Unmarshal([]byte(highlighted), &d.Highlighted); err != nil {
		return d, fmt.Errorf("failed to decode highlighted ids: %w", err)
	}
	if err := json.Unmarshal([]byte(resultIDs), &d.ResultIDs); err != nil {
		return d, fmt.Errorf("failed to decode result ids: %w", err)
	}
	return d, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
