// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package store

// Times are integer unix milliseconds. The readings log keeps every attempt
// inside the retention window; pruning never removes a source's newest
// successful row, so a restarted daemon can serve stale data immediately.
const schema = `
CREATE TABLE IF NOT EXISTS sources (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL,
    class      TEXT NOT NULL CHECK(class IN ('local','cloud')),
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS readings (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    at        INTEGER NOT NULL,
    ok        INTEGER NOT NULL CHECK(ok IN (0, 1)),
    bytes     INTEGER NOT NULL DEFAULT 0,
    payload   TEXT,
    error     TEXT
);

CREATE INDEX IF NOT EXISTS idx_readings_source_at ON readings(source_id, at DESC);

CREATE TABLE IF NOT EXISTS credentials (
    source_id  TEXT PRIMARY KEY REFERENCES sources(id) ON DELETE CASCADE,
    blob       TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`
