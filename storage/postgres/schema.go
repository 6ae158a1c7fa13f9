package postgres

// Schema creates the capability tables. Every statement is idempotent.
//
// The full capability is kept in record (the storage package's binary
// encoding). The three vector columns duplicate its vectors so that cosine
// similarity can be computed by pgvector; they are untyped so the embedding
// dimension may change between upserts.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS capabilities (
    id TEXT PRIMARY KEY,
    kind SMALLINT NOT NULL,
    status SMALLINT NOT NULL,
    name TEXT NOT NULL,
    record BYTEA NOT NULL,
    semantic_vec vector,
    functional_vec vector,
    contextual_vec vector,
    last_updated TIMESTAMPTZ NOT NULL
);

-- Key element entities, deduplicated by tag string
CREATE TABLE IF NOT EXISTS key_elements (
    tag TEXT PRIMARY KEY
);

-- Capability to key element edges
CREATE TABLE IF NOT EXISTS capability_key_elements (
    capability_id TEXT NOT NULL REFERENCES capabilities(id) ON DELETE CASCADE,
    tag TEXT NOT NULL REFERENCES key_elements(tag),
    PRIMARY KEY (capability_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_capability_key_elements_tag ON capability_key_elements(tag);
CREATE INDEX IF NOT EXISTS idx_capabilities_status_kind ON capabilities(status, kind);
`
