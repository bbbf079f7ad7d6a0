// notes.go: note repository operations shared by every database driver
package datastore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/screwnvim/screw-server/internal/errors"
)

// withReplies preloads the reply thread in a stable order so repeated reads
// of the same note return replies identically arranged.
func withReplies(db *gorm.DB) *gorm.DB {
	return db.Preload("Replies", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp ASC, id ASC")
	})
}

// notesWhere runs a filtered note listing with replies preloaded.
func (ds *DataStore) notesWhere(ctx context.Context, order, query string, args ...any) ([]Note, error) {
	var notes []Note
	err := withReplies(ds.DB.WithContext(ctx)).
		Where(query, args...).
		Order(order).
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// NotesByProject returns every note in a project, newest note time first.
// An unknown project yields an empty slice, not an error.
func (ds *DataStore) NotesByProject(ctx context.Context, projectName string) ([]Note, error) {
	start := time.Now()
	notes, err := ds.notesWhere(ctx, "timestamp DESC, id ASC", "project_name = ?", projectName)
	ds.observeOp("notes_by_project", start, err)
	if err != nil {
		return nil, dbError(err, "notes_by_project", errors.PriorityMedium, "project", projectName)
	}
	return notes, nil
}

// NotesByFile returns the notes attached to one file within a project,
// ordered by line number.
func (ds *DataStore) NotesByFile(ctx context.Context, projectName, filePath string) ([]Note, error) {
	start := time.Now()
	notes, err := ds.notesWhere(ctx, "line_number ASC, timestamp ASC, id ASC",
		"project_name = ? AND file_path = ?", projectName, filePath)
	ds.observeOp("notes_by_file", start, err)
	if err != nil {
		return nil, dbError(err, "notes_by_file", errors.PriorityMedium,
			"project", projectName, "file_path", filePath)
	}
	return notes, nil
}

// NotesByLine returns the notes attached to one line of one file, oldest
// insert first.
func (ds *DataStore) NotesByLine(ctx context.Context, projectName, filePath string, lineNumber int) ([]Note, error) {
	start := time.Now()
	notes, err := ds.notesWhere(ctx, "created_at ASC, id ASC",
		"project_name = ? AND file_path = ? AND line_number = ?", projectName, filePath, lineNumber)
	ds.observeOp("notes_by_line", start, err)
	if err != nil {
		return nil, dbError(err, "notes_by_line", errors.PriorityMedium,
			"project", projectName, "file_path", filePath, "line_number", lineNumber)
	}
	return notes, nil
}

// NoteByID fetches a single note with its reply thread.
func (ds *DataStore) NoteByID(ctx context.Context, id string) (*Note, error) {
	start := time.Now()
	var note Note
	err := withReplies(ds.DB.WithContext(ctx)).
		Where("id = ?", id).
		First(&note).Error
	ds.observeOp("note_by_id", start, err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("note", id)
		}
		return nil, dbError(err, "note_by_id", errors.PriorityMedium, "note_id", id)
	}
	return &note, nil
}

// ensureProject resolves the project row for a name, creating it with the
// default path on first use. Runs inside the caller's transaction so a failed
// note insert does not leave a stray project behind.
func ensureProject(tx *gorm.DB, projectName string) (*Project, error) {
	var project Project
	err := tx.Where(&Project{Name: projectName}).
		Attrs(&Project{Path: DefaultProjectPath}).
		FirstOrCreate(&project).Error
	if err == nil {
		return &project, nil
	}

	// A concurrent insert for the same name can slip between the lookup and
	// the create. The unique index makes the loser's insert fail, retry the
	// lookup once to pick up the winner's row.
	if isConstraintViolation(err) {
		if lookupErr := tx.Where("name = ?", projectName).First(&project).Error; lookupErr == nil {
			return &project, nil
		}
		return nil, conflictError(err, "ensure_project", "duplicate_project", "project", projectName)
	}
	return nil, err
}

// applyNoteDefaults fills the server-assigned fields of a note about to be
// inserted. Client-supplied values win for the fields bulk replace preserves,
// the rest always come from the server clock.
func applyNoteDefaults(note *Note, now time.Time) {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.Timestamp.IsZero() {
		note.Timestamp = now
	}
	if note.UserID == "" {
		note.UserID = note.Author
	}
	if note.State == "" {
		note.State = StateTodo
	}
	if note.Source == "" {
		note.Source = SourceNative
	}
	note.CreatedAt = now
	note.UpdatedAt = now
}

// CreateNote inserts a single note, creating its project on demand. The
// server assigns the identifier and both timestamps, any client-supplied
// values for those fields are ignored. The note's project linkage and
// assigned fields are written back to the argument.
func (ds *DataStore) CreateNote(ctx context.Context, note *Note) error {
	if note.ProjectName == "" {
		return validationError("project name is required", "project_name", note.ProjectName)
	}

	start := time.Now()
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := ensureProject(tx, note.ProjectName)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		note.ID = uuid.New().String()
		note.Timestamp = now
		note.ProjectID = project.ID
		applyNoteDefaults(note, now)

		// Replies are append-only through their own operation, a create
		// request never carries them into the insert.
		note.Replies = nil

		return tx.Omit("Replies").Create(note).Error
	})
	ds.observeOp("create_note", start, err)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryConflict) {
			return err
		}
		return dbError(err, "create_note", errors.PriorityHigh,
			"project", note.ProjectName, "file_path", note.FilePath)
	}
	return nil
}

// UpdateNote applies the full mutable field set to an existing note and
// returns the stored result with its reply thread. Every field in the update
// is written as supplied, including empty values.
func (ds *DataStore) UpdateNote(ctx context.Context, id string, update *NoteUpdate) (*Note, error) {
	start := time.Now()
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Existence is checked explicitly because RowsAffected reports
		// changed rows, not matched rows, on MySQL. An update that happens
		// to write identical values must not read as a missing note.
		var existing Note
		if err := tx.Select("id").Where("id = ?", id).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("note", id)
			}
			return err
		}

		return tx.Model(&Note{}).Where("id = ?", id).Updates(map[string]any{
			"file_path":   update.FilePath,
			"line_number": update.LineNumber,
			"author":      update.Author,
			"comment":     update.Comment,
			"description": update.Description,
			"cwe":         update.CWE,
			"state":       update.State,
			"severity":    update.Severity,
			"source":      update.Source,
			"updated_at":  time.Now().UTC(),
		}).Error
	})
	ds.observeOp("update_note", start, err)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, err
		}
		return nil, dbError(err, "update_note", errors.PriorityHigh, "note_id", id)
	}
	return ds.NoteByID(ctx, id)
}

// DeleteNote removes a note and its reply thread. Replies are deleted
// explicitly rather than via the foreign key so the cascade also holds on
// SQLite, which does not enforce referential actions by default.
func (ds *DataStore) DeleteNote(ctx context.Context, id string) error {
	start := time.Now()
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", id).Delete(&Reply{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&Note{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return notFoundError("note", id)
		}
		return nil
	})
	ds.observeOp("delete_note", start, err)
	if err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		return dbError(err, "delete_note", errors.PriorityHigh, "note_id", id)
	}
	return nil
}

// deleteProjectNotes removes every note of a project together with the
// attached replies, returning the number of notes removed. Shared by
// ClearProject and ReplaceProjectNotes.
func deleteProjectNotes(tx *gorm.DB, projectName string) (int64, error) {
	subquery := tx.Model(&Note{}).Select("id").Where("project_name = ?", projectName)
	if err := tx.Where("parent_id IN (?)", subquery).Delete(&Reply{}).Error; err != nil {
		return 0, err
	}

	result := tx.Where("project_name = ?", projectName).Delete(&Note{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ClearProject deletes every note in a project and reports how many were
// removed. Clearing an unknown or empty project succeeds with a zero count.
func (ds *DataStore) ClearProject(ctx context.Context, projectName string) (int64, error) {
	start := time.Now()
	var deleted int64
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = deleteProjectNotes(tx, projectName)
		return err
	})
	ds.observeOp("clear_project", start, err)
	if err != nil {
		return 0, dbError(err, "clear_project", errors.PriorityHigh, "project", projectName)
	}
	return deleted, nil
}

// ReplaceProjectNotes atomically swaps a project's entire note set for the
// supplied one. Client identifiers and note times survive the round trip so
// editors can sync their local state wholesale; missing fields get the same
// defaults as a fresh create. Any insert failure rolls the whole swap back,
// leaving the previous notes in place.
func (ds *DataStore) ReplaceProjectNotes(ctx context.Context, projectName string, notes []Note) (int64, error) {
	start := time.Now()
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := deleteProjectNotes(tx, projectName); err != nil {
			return err
		}

		project, err := ensureProject(tx, projectName)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range notes {
			notes[i].ProjectID = project.ID
			notes[i].ProjectName = projectName
			applyNoteDefaults(&notes[i], now)
			notes[i].Replies = nil

			if err := tx.Omit("Replies").Create(&notes[i]).Error; err != nil {
				if isConstraintViolation(err) {
					return conflictError(err, "replace_project_notes", "duplicate_note_id",
						"project", projectName, "note_id", notes[i].ID)
				}
				return err
			}
		}
		return nil
	})
	ds.observeOp("replace_project_notes", start, err)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryConflict) {
			return 0, err
		}
		return 0, dbError(err, "replace_project_notes", errors.PriorityHigh, "project", projectName)
	}
	return int64(len(notes)), nil
}

// CountNotes reports the number of notes currently stored for a project.
func (ds *DataStore) CountNotes(ctx context.Context, projectName string) (int64, error) {
	start := time.Now()
	var count int64
	err := ds.DB.WithContext(ctx).
		Model(&Note{}).
		Where("project_name = ?", projectName).
		Count(&count).Error
	ds.observeOp("count_notes", start, err)
	if err != nil {
		return 0, dbError(err, "count_notes", errors.PriorityMedium, "project", projectName)
	}
	return count, nil
}
