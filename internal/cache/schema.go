package cache

// Schema is the current cache schema as a single statement batch. It
// must stay in sync with the embedded migration files; tests apply it
// directly to in-memory databases without running the migration stack.
const Schema = `
CREATE TABLE attendance (
    id TEXT PRIMARY KEY,
    day TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    action_at TIMESTAMP NOT NULL,
    latitude REAL,
    longitude REAL,
    reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX idx_attendance_created_at ON attendance (created_at DESC);

CREATE TABLE meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
