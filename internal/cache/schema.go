package cache

// schema is applied in one transaction on a freshly created store. All DDL
// lives here, mirroring the teacher corpus's single-const-schema-string
// convention for embedded SQLite stores.
const schema = `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    local_version INTEGER NOT NULL CHECK(local_version >= 1),
    server_version INTEGER,
    text TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    modified_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    trash INTEGER NOT NULL DEFAULT 0,
    sync_deleted INTEGER NOT NULL DEFAULT 0,
    CHECK (modified_at >= created_at),
    CHECK (sync_deleted = 0 OR trash = 1)
);

CREATE INDEX IF NOT EXISTS idx_notes_modified_at ON notes(modified_at);
CREATE INDEX IF NOT EXISTS idx_notes_trash ON notes(trash);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
    text,
    tags,
    content='notes',
    content_rowid='rowid',
    tokenize='porter unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS notes_ai AFTER INSERT ON notes BEGIN
    INSERT INTO notes_fts(rowid, text, tags) VALUES (new.rowid, new.text, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS notes_ad AFTER DELETE ON notes BEGIN
    INSERT INTO notes_fts(notes_fts, rowid, text, tags) VALUES('delete', old.rowid, old.text, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS notes_au AFTER UPDATE ON notes BEGIN
    INSERT INTO notes_fts(notes_fts, rowid, text, tags) VALUES('delete', old.rowid, old.text, old.tags);
    INSERT INTO notes_fts(rowid, text, tags) VALUES (new.rowid, new.text, new.tags);
END;

CREATE TABLE IF NOT EXISTS sync_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Known sync_meta keys (§3).
const (
	metaOwnerIdentityHash  = "owner_identity_hash"
	metaDBKeySaltHex       = "db_key_salt_hex"
	metaBackendCursor      = "backend_cursor"
	metaLastSyncAttemptAt  = "last_sync_attempt_at"
	metaLastSuccessSyncAt  = "last_successful_sync_at"
	metaLastSyncDurationMs = "last_sync_duration_ms"
	metaLastSyncStatus     = "last_sync_status"
	metaSyncErrorCount     = "sync_error_count"
)

// currentSchemaVersion is stored in PRAGMA user_version, SQLite's native
// store-level version pragma slot.
const currentSchemaVersion = 1
