package datastore

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/screwnvim/screw-server/internal/errors"
)

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
}

// Open sets up the MySQL database connection and brings the schema up to
// date. The configured mysql:// URL is translated to the driver's tcp DSN
// form by the settings layer.
func (store *MySQLStore) Open() error {
	dsn, err := store.Settings.DatabaseDSN()
	if err != nil {
		return err
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: createGormLogger(store.Settings, store.dbRecorder()),
	})
	if err != nil {
		return dbError(err, "open_mysql", errors.PriorityCritical,
			"url", store.Settings.RedactedDatabaseURL())
	}

	store.DB = db
	if err := store.configureConnectionPool(); err != nil {
		return err
	}

	return performAutoMigration(db, "MySQL")
}

// Close releases the MySQL connection pool.
func (store *MySQLStore) Close() error {
	return store.closeDatabase()
}
