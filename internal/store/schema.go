package store

// Schema is the DDL for the mailsift session database.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id                  TEXT PRIMARY KEY,
    started_at          TEXT NOT NULL,
    ended_at            TEXT NOT NULL,
    mode                TEXT NOT NULL,
    dry_run             INTEGER DEFAULT 0,
    processed           INTEGER DEFAULT 0,
    kept                INTEGER DEFAULT 0,
    deleted             INTEGER DEFAULT 0,
    skipped             INTEGER DEFAULT 0,
    agreements          INTEGER DEFAULT 0,
    disagreements       INTEGER DEFAULT 0,
    auto_accepted       INTEGER DEFAULT 0,
    instruction_updates INTEGER DEFAULT 0,
    undos               INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);
`
