package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create kv, conversations and snapshots",
		SQL: `
			CREATE TABLE kv (
				key    TEXT PRIMARY KEY,
				value  TEXT NOT NULL
			);

			CREATE TABLE conversations (
				id               TEXT PRIMARY KEY,
				title            TEXT NOT NULL DEFAULT '',
				preview          TEXT NOT NULL DEFAULT '',
				created_at       TEXT NOT NULL,
				last_message_at  TEXT NOT NULL
			);

			CREATE INDEX idx_conversations_last ON conversations (last_message_at DESC);

			CREATE TABLE snapshots (
				session_id  TEXT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
				data        TEXT NOT NULL,
				saved_at    TEXT NOT NULL
			);
		`,
	},
}
