// schema.go: startup schema verification and additive migration
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/screwnvim/screw-server/internal/conf"
)

// createGormLogger configures the GORM logger from the database settings.
func createGormLogger(settings *conf.Settings, metrics dbMetricsRecorder) gormlogger.Interface {
	level := gormlogger.Warn
	if settings.Database.LogQueries || settings.Debug {
		level = gormlogger.Info
	}
	return NewGormLogger(settings.Database.SlowQueryThresholdDuration(), level, metrics)
}

// performAutoMigration creates missing tables, verifies the schema is
// queryable and applies the additive column migrations. The policy is
// forward-compatible and additive only: columns are never dropped or
// renamed, and a database from an older deployment must not abort startup.
func performAutoMigration(db *gorm.DB, dbType string) error {
	migrationStart := time.Now()
	migrationLogger := getLogger().With("db_type", dbType)

	migrationLogger.Debug("Starting schema migration")

	if err := db.AutoMigrate(&Project{}, &Note{}, &Reply{}); err != nil {
		return criticalError(err, "auto_migration", "schema cannot be created",
			"db_type", dbType)
	}

	if err := verifySchema(db); err != nil {
		return err
	}

	ensureOptionalColumns(db)

	migrationLogger.Info("Schema migration completed",
		"duration", time.Since(migrationStart))
	return nil
}

// verifySchema confirms the relations the store depends on are queryable.
// A missing replies table is logged but tolerated, older deployments
// predate threading.
func verifySchema(db *gorm.DB) error {
	m := db.Migrator()

	for _, required := range []string{"projects", "notes"} {
		if !m.HasTable(required) {
			return criticalError(
				fmt.Errorf("required table %q is missing", required),
				"verify_schema", "schema verification failed",
				"table", required)
		}
	}

	if !m.HasTable("replies") {
		getLogger().Warn("Replies table is missing, threaded replies unavailable until next migration")
	}

	return nil
}

// columnMigration is one entry of the ordered additive migration list.
type columnMigration struct {
	column string // Database column name, used for the existence check
	field  string // Model field whose tag defines type and default
}

// optionalNoteColumns lists the note columns added after the initial
// deployment, in the order they were introduced. Each is applied only when
// absent. updated_at and source carry database-level defaults via the model
// tags so rows written by older code stay readable.
var optionalNoteColumns = []columnMigration{
	{column: "description", field: "Description"},
	{column: "cwe", field: "CWE"},
	{column: "severity", field: "Severity"},
	{column: "updated_at", field: "UpdatedAt"},
	{column: "source", field: "Source"},
}

// ensureOptionalColumns applies the additive column list to the notes
// table. Failures are logged and swallowed: "already exists" is success,
// and partial schema drift must never abort startup.
func ensureOptionalColumns(db *gorm.DB) {
	m := db.Migrator()

	for _, cm := range optionalNoteColumns {
		if m.HasColumn(&Note{}, cm.column) {
			continue
		}

		if err := m.AddColumn(&Note{}, cm.field); err != nil {
			if isColumnExists(err) {
				continue
			}
			getLogger().Warn("Optional column migration failed",
				"column", cm.column,
				"error", err)
		} else {
			getLogger().Info("Added optional column", "column", cm.column)
		}
	}
}
