// internal/api/replies.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/screwnvim/screw-server/internal/datastore"
	"github.com/screwnvim/screw-server/internal/errors"
)

// initReplyRoutes registers the reply endpoints. Replies are append-only,
// there is no update or individual delete.
func (c *Controller) initReplyRoutes() {
	c.Group.POST("/notes/:id/replies", c.CreateReply)
}

// ReplyRequest is the incoming reply payload. The parent comes from the
// URL, a parent_id in the body is ignored.
type ReplyRequest struct {
	ID        string `json:"id,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp,omitempty"`
	Comment   string `json:"comment"`
	UserID    string `json:"user_id"`
}

// ReplyResponse represents a reply in API responses.
type ReplyResponse struct {
	ID        string `json:"id"`
	ParentID  string `json:"parent_id"`
	Author    string `json:"author"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
	Comment   string `json:"comment"`
}

// ReplyEnvelope wraps a single reply.
type ReplyEnvelope struct {
	Reply ReplyResponse `json:"reply"`
}

// validateReplyRequest checks the reply payload contract.
func validateReplyRequest(req *ReplyRequest) error {
	var missing []string
	if req.Author == "" {
		missing = append(missing, "author")
	}
	if req.Comment == "" {
		missing = append(missing, "comment")
	}
	if req.UserID == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return errors.Newf("missing required fields: %s", strings.Join(missing, ", ")).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// CreateReply handles POST /api/notes/:id/replies
func (c *Controller) CreateReply(ctx echo.Context) error {
	parentID := pathParam(ctx, "id")

	var req ReplyRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if err := validateReplyRequest(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid reply payload", http.StatusBadRequest)
	}

	ts, err := parseClientTime(req.Timestamp)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid reply payload", http.StatusBadRequest)
	}

	reply := datastore.Reply{
		ID:        req.ID,
		Author:    req.Author,
		UserID:    req.UserID,
		Timestamp: ts,
		Comment:   req.Comment,
	}

	if err := c.DS.AppendReply(ctx.Request().Context(), parentID, &reply); err != nil {
		return c.HandleDatastoreError(ctx, err, "Parent note not found")
	}

	c.Debug("Added reply %s to note %s", reply.ID, parentID)
	return ctx.JSON(http.StatusOK, ReplyEnvelope{Reply: toReplyResponse(&reply)})
}
