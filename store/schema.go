package store

// schema is the complete crawl database schema. Everything is IF NOT
// EXISTS so reopening an existing database is a no-op.
const schema = `
-- One row per URL ever considered for fetch. Never deleted.
CREATE TABLE IF NOT EXISTS documents (
    url                  TEXT PRIMARY KEY,
    canonical_url        TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL,
    depth_from_seed      INTEGER NOT NULL DEFAULT 0,
    url_path             TEXT NOT NULL DEFAULT '',
    content_type         TEXT NOT NULL DEFAULT '',
    title                TEXT NOT NULL DEFAULT '',
    content              TEXT NOT NULL DEFAULT '',
    crawled_at           INTEGER NOT NULL,
    error_message        TEXT NOT NULL DEFAULT '',
    meta_tags            TEXT NOT NULL DEFAULT '{}',
    local_artifact_paths TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(url_path);

-- FTS5 over title + content, kept in sync by triggers.
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    title, content, content='documents', content_rowid='rowid',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
END;
CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
END;
CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
    INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
END;

-- Question/answer pairs extracted from a document. Replaced wholesale
-- when the parent is re-crawled.
CREATE TABLE IF NOT EXISTS faq_items (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    document_url         TEXT NOT NULL REFERENCES documents(url) ON DELETE CASCADE,
    question_text        TEXT NOT NULL DEFAULT '',
    answer_text          TEXT NOT NULL DEFAULT '',
    answer_raw_html      TEXT NOT NULL DEFAULT '',
    answer_mode          TEXT NOT NULL,
    link_depth_to_answer INTEGER
);
CREATE INDEX IF NOT EXISTS idx_faq_items_doc ON faq_items(document_url);

-- Full outbound link set per document, fetched or not.
CREATE TABLE IF NOT EXISTS link_edges (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    parent_url          TEXT NOT NULL REFERENCES documents(url) ON DELETE CASCADE,
    child_url           TEXT NOT NULL,
    anchor_text         TEXT NOT NULL DEFAULT '',
    is_external         INTEGER NOT NULL DEFAULT 0,
    canonical_child_url TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_link_edges_parent ON link_edges(parent_url);
CREATE INDEX IF NOT EXISTS idx_link_edges_child ON link_edges(canonical_child_url);

-- Saved binary assets, deduplicated by URL.
CREATE TABLE IF NOT EXISTS assets (
    asset_url       TEXT PRIMARY KEY,
    source_page_url TEXT,
    asset_type      TEXT NOT NULL,
    local_path      TEXT NOT NULL DEFAULT ''
);

-- Off-domain URLs and domains seen in links. Never fetched.
CREATE TABLE IF NOT EXISTS external_urls (
    url           TEXT PRIMARY KEY,
    first_seen_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS external_domains (
    domain        TEXT PRIMARY KEY,
    first_seen_at INTEGER NOT NULL
);

-- The durable frontier. status: pending -> processing -> completed|failed.
CREATE TABLE IF NOT EXISTS crawl_queue (
    url           TEXT PRIMARY KEY,
    depth         INTEGER NOT NULL DEFAULT 0,
    parent_url    TEXT,
    status        TEXT NOT NULL DEFAULT 'pending',
    added_at      INTEGER NOT NULL,
    priority      INTEGER NOT NULL DEFAULT 0,
    attempts      INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_queue_status ON crawl_queue(status, priority DESC, added_at);

-- Small key/value bag for run-level bookkeeping.
CREATE TABLE IF NOT EXISTS crawl_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL
);

-- Per-request observability trail.
CREATE TABLE IF NOT EXISTS fetch_log (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    url           TEXT NOT NULL,
    status        TEXT NOT NULL,
    status_code   INTEGER,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    fetched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_time ON fetch_log(fetched_at DESC);
`
