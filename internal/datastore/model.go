// model.go this code defines the data model for the application
package datastore

import (
	"time"

	"gorm.io/datatypes"
)

// Note state values. The store does not reject other strings, these are the
// values collaborating editor clients exchange.
const (
	StateTodo          = "todo"
	StateVulnerable    = "vulnerable"
	StateNotVulnerable = "not_vulnerable"
)

// Note severity values.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
	SeverityInfo   = "info"
)

// Note provenance values. ImportMetadata is only meaningful for
// SourceSarifImport and is never interpreted by the store.
const (
	SourceNative      = "native"
	SourceSarifImport = "sarif-import"
)

// DefaultProjectPath is assigned to lazily created projects.
const DefaultProjectPath = "/"

// Project is a named collaboration namespace containing notes. Projects are
// created on first note insert for a name and never deleted, a project with
// zero notes is valid.
type Project struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null;type:varchar(255)"`
	Path      string `gorm:"type:varchar(512)"`
	CreatedAt time.Time
}

// Note represents a single annotation at a (project, file, line) coordinate.
// ID is a UUID assigned on creation; bulk replace honors client-supplied ids.
type Note struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	ProjectID   uint      `gorm:"index;not null"`
	ProjectName string    `gorm:"index;not null;type:varchar(255)"` // Denormalized for project-scoped queries
	FilePath    string    `gorm:"index;type:varchar(512)"`
	LineNumber  int       `gorm:"not null"`
	Author      string    `gorm:"type:varchar(255)"`
	UserID      string    `gorm:"type:varchar(255)"`
	Timestamp   time.Time `gorm:"index"` // Client-facing note time, distinct from CreatedAt
	Comment     string    `gorm:"type:text"`
	Description string    `gorm:"type:text"`
	CWE         string    `gorm:"column:cwe;type:varchar(20)"`
	State       string    `gorm:"type:varchar(20);default:todo"`
	Severity    string    `gorm:"type:varchar(10)"`
	Source      string    `gorm:"type:varchar(20);default:native"`

	// Opaque payload carried for sarif-import notes, never parsed here
	ImportMetadata datatypes.JSON `gorm:"column:import_metadata"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Replies []Reply `gorm:"foreignKey:ParentID;references:ID;constraint:OnDelete:CASCADE"` // Thread, ordered by reply timestamp
}

// Reply is an append-only threaded comment on a note. Replies are never
// updated or individually deleted, they go away with their parent note.
type Reply struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	ParentID  string    `gorm:"column:parent_id;index;not null;type:varchar(64)"`
	Author    string    `gorm:"type:varchar(255)"`
	UserID    string    `gorm:"type:varchar(255)"`
	Timestamp time.Time `gorm:"index"`
	Comment   string    `gorm:"type:text"`
}
