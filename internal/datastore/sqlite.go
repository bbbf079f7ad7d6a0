package datastore

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/screwnvim/screw-server/internal/errors"
)

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
}

// Open sets up the SQLite database connection and brings the schema up to
// date. The configured database URL is used verbatim as the file path.
func (store *SQLiteStore) Open() error {
	path, err := store.Settings.DatabaseDSN()
	if err != nil {
		return err
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: createGormLogger(store.Settings, store.dbRecorder()),
	})
	if err != nil {
		return dbError(err, "open_sqlite", errors.PriorityCritical, "path", path)
	}

	store.DB = db
	if err := store.configureConnectionPool(); err != nil {
		return err
	}

	return performAutoMigration(db, "SQLite")
}

// Close releases the SQLite connection.
func (store *SQLiteStore) Close() error {
	return store.closeDatabase()
}
