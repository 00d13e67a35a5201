package journal

const schemaSQL = `
CREATE TABLE IF NOT EXISTS batches (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    id            TEXT NOT NULL,
    maildir       TEXT NOT NULL,
    relative_path TEXT NOT NULL,
    message_count INTEGER NOT NULL CHECK (message_count > 0),
    unseen        INTEGER NOT NULL DEFAULT -1,
    outcome       TEXT NOT NULL CHECK (outcome IN ('shown', 'inhibited', 'failed')),
    created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at);
CREATE INDEX IF NOT EXISTS idx_batches_maildir ON batches(maildir);
`

const (
	insertBatchSQL = `INSERT INTO batches (id, maildir, relative_path, message_count, unseen, outcome, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	listBatchesSQL = `SELECT id, maildir, relative_path, message_count, unseen, outcome, created_at
FROM batches ORDER BY seq DESC LIMIT ?`

	listBatchesForMaildirSQL = `SELECT id, maildir, relative_path, message_count, unseen, outcome, created_at
FROM batches WHERE maildir = ? ORDER BY seq DESC LIMIT ?`

	countBatchesSQL = `SELECT COUNT(*) FROM batches`

	trimBatchesSQL = `DELETE FROM batches WHERE seq NOT IN (
    SELECT seq FROM batches ORDER BY seq DESC LIMIT ?
)`
)
