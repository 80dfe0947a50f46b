package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS folders (
	id          TEXT PRIMARY KEY,
	position    INTEGER NOT NULL,
	parent      TEXT NOT NULL DEFAULT '',
	label       TEXT NOT NULL DEFAULT '',
	path        TEXT NOT NULL DEFAULT '',
	view        TEXT NOT NULL DEFAULT '',
	items_count INTEGER NOT NULL DEFAULT 0,
	color       INTEGER NOT NULL DEFAULT 0,
	deletable   INTEGER NOT NULL DEFAULT 0 CHECK(deletable IN (0, 1)),
	is_shared   INTEGER NOT NULL DEFAULT 0 CHECK(is_shared IN (0, 1)),
	owner       TEXT NOT NULL DEFAULT '',
	perm        TEXT NOT NULL DEFAULT '',
	shared_with TEXT NOT NULL DEFAULT '[]',
	broken      INTEGER NOT NULL DEFAULT 0 CHECK(broken IN (0, 1))
);

CREATE TABLE IF NOT EXISTS buckets (
	folder_id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS contacts (
	folder_id TEXT NOT NULL REFERENCES buckets(folder_id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	id        TEXT NOT NULL DEFAULT '',
	data      TEXT NOT NULL,
	PRIMARY KEY (folder_id, position)
);

CREATE INDEX IF NOT EXISTS idx_contacts_id ON contacts(id);

CREATE TABLE IF NOT EXISTS folder_status (
	folder_id TEXT PRIMARY KEY,
	fetched   INTEGER NOT NULL DEFAULT 0 CHECK(fetched IN (0, 1))
);

CREATE TABLE IF NOT EXISTS sync_state (
	id       INTEGER PRIMARY KEY CHECK(id = 1),
	last_seq INTEGER NOT NULL DEFAULT 0
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
