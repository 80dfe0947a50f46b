package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/contacts/internal/cache"
	"github.com/nhle/contacts/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases alive across calls
	// and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// folderRow is the folders table layout.
type folderRow struct {
	ID         string `db:"id"`
	Position   int    `db:"position"`
	Parent     string `db:"parent"`
	Label      string `db:"label"`
	Path       string `db:"path"`
	View       string `db:"view"`
	ItemsCount int    `db:"items_count"`
	Color      int    `db:"color"`
	Deletable  bool   `db:"deletable"`
	IsShared   bool   `db:"is_shared"`
	Owner      string `db:"owner"`
	Perm       string `db:"perm"`
	SharedWith string `db:"shared_with"`
	Broken     bool   `db:"broken"`
}

type contactRow struct {
	FolderID string `db:"folder_id"`
	Position int    `db:"position"`
	ID       string `db:"id"`
	Data     string `db:"data"`
}

type statusRow struct {
	FolderID string `db:"folder_id"`
	Fetched  bool   `db:"fetched"`
}

// SaveState replaces the persisted cache with st. Placeholder folders of
// pending creates are skipped.
func (s *SQLiteStore) SaveState(ctx context.Context, st cache.State) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"contacts", "buckets", "folders", "folder_status"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for i, f := range st.Folders {
		if f.Local {
			continue
		}
		row, err := toFolderRow(i, f)
		if err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO folders (
				id, position, parent, label, path, view,
				items_count, color, deletable, is_shared,
				owner, perm, shared_with, broken
			) VALUES (
				:id, :position, :parent, :label, :path, :view,
				:items_count, :color, :deletable, :is_shared,
				:owner, :perm, :shared_with, :broken
			)`, row)
		if err != nil {
			return fmt.Errorf("saving folder %s: %w", f.ID, err)
		}
	}

	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO contacts (folder_id, position, id, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing contact insert: %w", err)
	}
	defer stmt.Close()

	for folder, contacts := range st.Contacts {
		if _, err := tx.ExecContext(ctx, "INSERT INTO buckets (folder_id) VALUES (?)", folder); err != nil {
			return fmt.Errorf("saving bucket %s: %w", folder, err)
		}
		for i, c := range contacts {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("marshaling contact %s: %w", c.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, folder, i, c.ID, string(data)); err != nil {
				return fmt.Errorf("saving contact %s: %w", c.ID, err)
			}
		}
	}

	for folder, fetched := range st.Status {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO folder_status (folder_id, fetched) VALUES (?, ?)",
			folder, boolToInt(fetched),
		)
		if err != nil {
			return fmt.Errorf("saving status of %s: %w", folder, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO sync_state (id, last_seq) VALUES (1, ?)", st.LastSeq)
	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}

	return tx.Commit()
}

// LoadState reads the persisted cache.
func (s *SQLiteStore) LoadState(ctx context.Context) (cache.State, error) {
	st := cache.NewState()

	var folders []folderRow
	if err := s.db.SelectContext(ctx, &folders, "SELECT * FROM folders ORDER BY position"); err != nil {
		return cache.State{}, fmt.Errorf("querying folders: %w", err)
	}
	for _, row := range folders {
		f, err := row.folder()
		if err != nil {
			return cache.State{}, err
		}
		st.Folders = append(st.Folders, f)
	}

	var buckets []string
	if err := s.db.SelectContext(ctx, &buckets, "SELECT folder_id FROM buckets"); err != nil {
		return cache.State{}, fmt.Errorf("querying buckets: %w", err)
	}
	for _, b := range buckets {
		st.Contacts[b] = []model.Contact{}
	}

	var contacts []contactRow
	err := s.db.SelectContext(ctx, &contacts,
		"SELECT folder_id, position, id, data FROM contacts ORDER BY folder_id, position")
	if err != nil {
		return cache.State{}, fmt.Errorf("querying contacts: %w", err)
	}
	for _, row := range contacts {
		var c model.Contact
		if err := json.Unmarshal([]byte(row.Data), &c); err != nil {
			return cache.State{}, fmt.Errorf("unmarshaling contact %s: %w", row.ID, err)
		}
		st.Contacts[row.FolderID] = append(st.Contacts[row.FolderID], fillEmpty(c))
	}

	var statuses []statusRow
	if err := s.db.SelectContext(ctx, &statuses, "SELECT folder_id, fetched FROM folder_status"); err != nil {
		return cache.State{}, fmt.Errorf("querying folder status: %w", err)
	}
	for _, row := range statuses {
		st.Status[row.FolderID] = row.Fetched
	}

	err = s.db.GetContext(ctx, &st.LastSeq, "SELECT COALESCE(MAX(last_seq), 0) FROM sync_state")
	if err != nil {
		return cache.State{}, fmt.Errorf("reading sync state: %w", err)
	}

	return st, nil
}

func toFolderRow(position int, f model.ContactsFolder) (folderRow, error) {
	grants, err := json.Marshal(f.SharedWith)
	if err != nil {
		return folderRow{}, fmt.Errorf("marshaling grants of folder %s: %w", f.ID, err)
	}
	return folderRow{
		ID:         f.ID,
		Position:   position,
		Parent:     f.Parent,
		Label:      f.Label,
		Path:       f.Path,
		View:       f.View,
		ItemsCount: f.ItemsCount,
		Color:      f.Color,
		Deletable:  f.Deletable,
		IsShared:   f.IsShared,
		Owner:      f.Owner,
		Perm:       f.Perm,
		SharedWith: string(grants),
		Broken:     f.Broken,
	}, nil
}

func (r folderRow) folder() (model.ContactsFolder, error) {
	f := model.ContactsFolder{
		ID:         r.ID,
		Parent:     r.Parent,
		Label:      r.Label,
		Path:       r.Path,
		View:       r.View,
		ItemsCount: r.ItemsCount,
		Color:      r.Color,
		Deletable:  r.Deletable,
		IsShared:   r.IsShared,
		Owner:      r.Owner,
		Perm:       r.Perm,
		Broken:     r.Broken,
	}
	if r.SharedWith != "" {
		if err := json.Unmarshal([]byte(r.SharedWith), &f.SharedWith); err != nil {
			return model.ContactsFolder{}, fmt.Errorf("unmarshaling grants of folder %s: %w", r.ID, err)
		}
	}
	return f, nil
}

// fillEmpty restores the empty collections dropped by JSON encoding.
func fillEmpty(c model.Contact) model.Contact {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Email == nil {
		c.Email = map[model.FieldID]model.Email{}
	}
	if c.Phone == nil {
		c.Phone = map[model.FieldID]model.Phone{}
	}
	if c.Address == nil {
		c.Address = map[model.FieldID]model.Address{}
	}
	if c.URL == nil {
		c.URL = map[model.FieldID]model.URL{}
	}
	return c
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
