// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveCredentials stores the sealed blob for a source, replacing any
// previous one. The blob is opaque here; sealing belongs to the vault.
func (s *Store) SaveCredentials(ctx context.Context, sourceID, blob string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO credentials (source_id, blob, updated_at) VALUES (?, ?, ?)
ON CONFLICT(source_id) DO UPDATE SET
    blob = excluded.blob, updated_at = excluded.updated_at`,
		sourceID, blob, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save credentials %s: %w", sourceID, err)
	}
	return nil
}

// LoadCredentials returns the sealed blob for a source.
func (s *Store) LoadCredentials(ctx context.Context, sourceID string) (string, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM credentials WHERE source_id = ?`, sourceID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: load credentials %s: %w", sourceID, err)
	}
	return blob, nil
}

// DeleteCredentials drops a source's sealed blob if present.
func (s *Store) DeleteCredentials(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE source_id = ?`, sourceID)
	if err != nil {
		return fmt.Errorf("store: delete credentials %s: %w", sourceID, err)
	}
	return nil
}
