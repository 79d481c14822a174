// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package store

import (
	"context"
	"fmt"
	"time"
)

// SourceMeta mirrors the configured identity of a source into the database
// so reading rows keep their context across config changes.
type SourceMeta struct {
	ID    string
	Name  string
	Kind  string
	Class string
}

// UpsertSource records the source row, refreshing name, kind and class.
// Reading and credential rows reference it, so the manager upserts before
// any recording happens.
func (s *Store) UpsertSource(ctx context.Context, m SourceMeta) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sources (id, name, kind, class, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name, kind = excluded.kind, class = excluded.class,
    updated_at = excluded.updated_at`,
		m.ID, m.Name, m.Kind, m.Class, now, now)
	if err != nil {
		return fmt.Errorf("store: upsert source %s: %w", m.ID, err)
	}
	return nil
}

// Sources lists the known source rows ordered by id.
func (s *Store) Sources(ctx context.Context) ([]SourceMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, class FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list sources: %w", err)
	}
	defer rows.Close()

	var out []SourceMeta
	for rows.Next() {
		var m SourceMeta
		if err := rows.Scan(&m.ID, &m.Name, &m.Kind, &m.Class); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
