package datastore

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/screwnvim/screw-server/internal/errors"
)

// PostgresStore implements Interface for PostgreSQL, the driver the shared
// deployment runs on.
type PostgresStore struct {
	DataStore
}

// Open sets up the PostgreSQL database connection and brings the schema up
// to date. The configured postgres:// URL is passed through to the driver.
func (store *PostgresStore) Open() error {
	dsn, err := store.Settings.DatabaseDSN()
	if err != nil {
		return err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: createGormLogger(store.Settings, store.dbRecorder()),
	})
	if err != nil {
		return dbError(err, "open_postgres", errors.PriorityCritical,
			"url", store.Settings.RedactedDatabaseURL())
	}

	store.DB = db
	if err := store.configureConnectionPool(); err != nil {
		return err
	}

	return performAutoMigration(db, "PostgreSQL")
}

// Close releases the PostgreSQL connection pool.
func (store *PostgresStore) Close() error {
	return store.closeDatabase()
}
