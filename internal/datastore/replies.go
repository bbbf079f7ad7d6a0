// replies.go: append-only reply thread operations
package datastore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/screwnvim/screw-server/internal/errors"
)

// AppendReply attaches a reply to an existing note. The parent is verified
// inside the transaction so the insert cannot race a concurrent note delete.
// Client-supplied id and timestamp are honored, absent ones are assigned by
// the server. The assigned fields are written back to the argument.
func (ds *DataStore) AppendReply(ctx context.Context, parentID string, reply *Reply) error {
	start := time.Now()
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent Note
		if err := tx.Select("id").Where("id = ?", parentID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("note", parentID)
			}
			return err
		}

		if reply.ID == "" {
			reply.ID = uuid.New().String()
		}
		if reply.Timestamp.IsZero() {
			reply.Timestamp = time.Now().UTC()
		}
		reply.ParentID = parentID

		if err := tx.Create(reply).Error; err != nil {
			if isConstraintViolation(err) {
				return conflictError(err, "append_reply", "duplicate_reply_id",
					"parent_id", parentID, "reply_id", reply.ID)
			}
			return err
		}
		return nil
	})
	ds.observeOp("append_reply", start, err)
	if err != nil {
		if errors.IsNotFound(err) || errors.IsCategory(err, errors.CategoryConflict) {
			return err
		}
		return dbError(err, "append_reply", errors.PriorityHigh, "parent_id", parentID)
	}
	return nil
}
