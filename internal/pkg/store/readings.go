// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hearthlab/hearthd/internal/pkg/source"
)

// RecordAttempt appends one fetch outcome to the readings log.
func (s *Store) RecordAttempt(ctx context.Context, sourceID string, att source.Attempt) error {
	ok := 0
	if att.OK {
		ok = 1
	}
	var payload, errText sql.NullString
	if len(att.Raw) > 0 {
		payload = sql.NullString{String: string(att.Raw), Valid: true}
	}
	if att.Err != "" {
		errText = sql.NullString{String: att.Err, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO readings (source_id, at, ok, bytes, payload, error)
VALUES (?, ?, ?, ?, ?, ?)`,
		sourceID, att.At.UnixMilli(), ok, int64(att.Bytes), payload, errText)
	if err != nil {
		return fmt.Errorf("store: record attempt %s: %w", sourceID, err)
	}
	return nil
}

// LastGood returns the newest successful attempt for the source, however old.
func (s *Store) LastGood(ctx context.Context, sourceID string) (source.Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT at, bytes, payload FROM readings
WHERE source_id = ? AND ok = 1
ORDER BY at DESC, id DESC LIMIT 1`, sourceID)

	var at, bytes int64
	var payload sql.NullString
	if err := row.Scan(&at, &bytes, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return source.Attempt{}, ErrNotFound
		}
		return source.Attempt{}, fmt.Errorf("store: last good %s: %w", sourceID, err)
	}

	att := source.Attempt{At: time.UnixMilli(at), OK: true, Bytes: uint64(bytes)}
	if payload.Valid {
		att.Raw = json.RawMessage(payload.String)
	}
	return att, nil
}

// RecentAttempts returns up to limit attempts for the source, newest first.
func (s *Store) RecentAttempts(ctx context.Context, sourceID string, limit int) ([]source.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT at, ok, bytes, payload, error FROM readings
WHERE source_id = ?
ORDER BY at DESC, id DESC LIMIT ?`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent attempts %s: %w", sourceID, err)
	}
	defer rows.Close()

	var out []source.Attempt
	for rows.Next() {
		var at, bytes int64
		var ok int
		var payload, errText sql.NullString
		if err := rows.Scan(&at, &ok, &bytes, &payload, &errText); err != nil {
			return nil, err
		}
		att := source.Attempt{At: time.UnixMilli(at), OK: ok == 1, Bytes: uint64(bytes)}
		if payload.Valid {
			att.Raw = json.RawMessage(payload.String)
		}
		if errText.Valid {
			att.Err = errText.String
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// Prune deletes reading rows older than cutoff, always keeping each source's
// newest successful row regardless of age. The keep-set ranks rows the same
// way LastGood does, so the row that survives is the one LastGood serves.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM readings WHERE at < ? AND id NOT IN (
    SELECT id FROM (
        SELECT id, ROW_NUMBER() OVER (
            PARTITION BY source_id ORDER BY at DESC, id DESC
        ) AS rn
        FROM readings WHERE ok = 1
    ) WHERE rn = 1
)`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}
