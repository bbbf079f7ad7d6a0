// schema_test.go: startup migration behavior against real SQLite files
package datastore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/screwnvim/screw-server/internal/conf"
)

func TestReopenExistingDatabase(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.URL = filepath.Join(t.TempDir(), "screw.db")
	ctx := context.Background()

	store := &SQLiteStore{DataStore: DataStore{Settings: settings}}
	require.NoError(t, store.Open())

	note := testNote("backend", "a.go", 1)
	require.NoError(t, store.CreateNote(ctx, note))
	require.NoError(t, store.AppendReply(ctx, note.ID, &Reply{Author: "bob", UserID: "bob", Comment: "kept"}))
	require.NoError(t, store.Close())

	// Opening the same file again re-runs the migration, which must be a
	// no-op on an up-to-date schema.
	reopened := &SQLiteStore{DataStore: DataStore{Settings: settings}}
	require.NoError(t, reopened.Open())
	t.Cleanup(func() {
		assert.NoError(t, reopened.Close())
	})

	stored, err := reopened.NoteByID(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.Comment, stored.Comment)
	require.Len(t, stored.Replies, 1)
}

func TestOpenUpgradesLegacySchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "legacy.db")

	// Lay down the shape of a first-generation database: no replies table
	// and none of the later note columns.
	legacy, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(255) NOT NULL UNIQUE,
			path VARCHAR(512),
			created_at DATETIME)`,
		`CREATE TABLE notes (
			id VARCHAR(64) PRIMARY KEY,
			project_id INTEGER NOT NULL,
			project_name VARCHAR(255) NOT NULL,
			file_path VARCHAR(512),
			line_number INTEGER NOT NULL,
			author VARCHAR(255),
			user_id VARCHAR(255),
			timestamp DATETIME,
			comment TEXT,
			state VARCHAR(20) DEFAULT 'todo',
			created_at DATETIME)`,
		`INSERT INTO projects (name, path, created_at) VALUES ('backend', '/', '2024-06-01 10:00:00')`,
		`INSERT INTO notes (id, project_id, project_name, file_path, line_number, author, user_id, timestamp, comment, state, created_at)
			VALUES ('legacy-1', 1, 'backend', 'a.go', 3, 'alice', 'alice', '2024-06-01 10:00:00', 'pre-upgrade note', 'todo', '2024-06-01 10:00:00')`,
	} {
		require.NoError(t, legacy.Exec(stmt).Error)
	}
	legacyDB, err := legacy.DB()
	require.NoError(t, err)
	require.NoError(t, legacyDB.Close())

	settings := &conf.Settings{}
	settings.Database.URL = path

	store := &SQLiteStore{DataStore: DataStore{Settings: settings}}
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	m := store.DB.Migrator()
	assert.True(t, m.HasTable("replies"), "upgrade creates the replies table")
	for _, column := range []string{"description", "cwe", "severity", "updated_at", "source"} {
		assert.True(t, m.HasColumn(&Note{}, column), "missing column %s", column)
	}

	// The pre-upgrade row stays readable, new columns read as zero values.
	stored, err := store.NoteByID(context.Background(), "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, "pre-upgrade note", stored.Comment)
	assert.Empty(t, stored.Description)
	assert.Empty(t, stored.Severity)
	assert.Empty(t, stored.Replies)
}
