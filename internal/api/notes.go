// internal/api/notes.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/screwnvim/screw-server/internal/datastore"
	"github.com/screwnvim/screw-server/internal/errors"
)

// initNoteRoutes registers all note endpoints. The static "note" segment
// keeps single-note lookups from colliding with project listings.
func (c *Controller) initNoteRoutes() {
	c.Group.GET("/notes/note/:id", c.GetNote)
	c.Group.GET("/notes/:project", c.GetProjectNotes)
	c.Group.GET("/notes/:project/file", c.GetFileNotes)
	c.Group.GET("/notes/:project/line", c.GetLineNotes)
	c.Group.POST("/notes", c.CreateNote)
	c.Group.PUT("/notes/:id", c.UpdateNote)
	c.Group.PUT("/notes/:project/replace", c.ReplaceProjectNotes)
	c.Group.DELETE("/notes/:key", c.DeleteNoteOrProject)
}

// NoteRequest is the incoming note payload shared by create, update and
// bulk replace. Servers assign ids and timestamps the client leaves empty.
type NoteRequest struct {
	ID             string         `json:"id,omitempty"`
	FilePath       string         `json:"file_path"`
	LineNumber     int            `json:"line_number"`
	Author         string         `json:"author"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Comment        string         `json:"comment"`
	Description    string         `json:"description,omitempty"`
	CWE            string         `json:"cwe,omitempty"`
	State          string         `json:"state,omitempty"`
	Severity       string         `json:"severity,omitempty"`
	Source         string         `json:"source,omitempty"`
	ImportMetadata map[string]any `json:"import_metadata,omitempty"`
	ProjectName    string         `json:"project_name"`
	UserID         string         `json:"user_id"`
}

// NoteResponse represents a note in API responses.
type NoteResponse struct {
	ID             string          `json:"id"`
	ProjectName    string          `json:"project_name"`
	FilePath       string          `json:"file_path"`
	LineNumber     int             `json:"line_number"`
	Author         string          `json:"author"`
	UserID         string          `json:"user_id"`
	Timestamp      string          `json:"timestamp"`
	Comment        string          `json:"comment"`
	Description    string          `json:"description,omitempty"`
	CWE            string          `json:"cwe,omitempty"`
	State          string          `json:"state"`
	Severity       string          `json:"severity,omitempty"`
	Source         string          `json:"source"`
	ImportMetadata json.RawMessage `json:"import_metadata,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
	Replies        []ReplyResponse `json:"replies"`
}

// NotesResponse wraps a note listing.
type NotesResponse struct {
	Notes []NoteResponse `json:"notes"`
}

// NoteEnvelope wraps a single note.
type NoteEnvelope struct {
	Note NoteResponse `json:"note"`
}

// SuccessResponse acknowledges a mutation with no further payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ClearProjectResponse acknowledges a project-wide delete.
type ClearProjectResponse struct {
	Success      bool  `json:"success"`
	DeletedCount int64 `json:"deleted_count"`
}

// ReplaceNotesRequest carries the full note set for a bulk replace. A
// missing notes field is a valid request that clears the project.
type ReplaceNotesRequest struct {
	Notes []NoteRequest `json:"notes"`
}

// ReplaceNotesResponse acknowledges a bulk replace.
type ReplaceNotesResponse struct {
	Success bool  `json:"success"`
	Count   int64 `json:"count"`
}

// pathParam returns a decoded path parameter. Echo hands parameters back
// still escaped when the request URL contained escapes.
func pathParam(ctx echo.Context, name string) string {
	raw := ctx.Param(name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// validateNoteRequest checks the full payload contract used by create and
// update.
func validateNoteRequest(req *NoteRequest) error {
	var missing []string
	if req.FilePath == "" {
		missing = append(missing, "file_path")
	}
	if req.Author == "" {
		missing = append(missing, "author")
	}
	if req.Comment == "" {
		missing = append(missing, "comment")
	}
	if req.ProjectName == "" {
		missing = append(missing, "project_name")
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

	if req.LineNumber < 1 {
		return errors.Newf("line_number must be a positive integer").
			Component("api").
			Category(errors.CategoryValidation).
			Context("line_number", req.LineNumber).
			Build()
	}
	return nil
}

// validateReplaceItem checks one entry of a bulk replace payload. The
// project comes from the URL and a missing user_id falls back to the
// author, so neither is required here.
func validateReplaceItem(req *NoteRequest, index int) error {
	var missing []string
	if req.FilePath == "" {
		missing = append(missing, "file_path")
	}
	if req.Author == "" {
		missing = append(missing, "author")
	}
	if req.Comment == "" {
		missing = append(missing, "comment")
	}
	if len(missing) > 0 {
		return errors.Newf("notes[%d] is missing required fields: %s", index, strings.Join(missing, ", ")).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}

	if req.LineNumber < 1 {
		return errors.Newf("notes[%d] line_number must be a positive integer", index).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// GetProjectNotes handles GET /api/notes/:project
func (c *Controller) GetProjectNotes(ctx echo.Context) error {
	projectName := pathParam(ctx, "project")

	notes, err := c.DS.NotesByProject(ctx.Request().Context(), projectName)
	if err != nil {
		return c.HandleDatastoreError(ctx, err, "Project not found")
	}

	return ctx.JSON(http.StatusOK, NotesResponse{Notes: toNoteResponses(notes)})
}

// GetFileNotes handles GET /api/notes/:project/file?path=...
func (c *Controller) GetFileNotes(ctx echo.Context) error {
	projectName := pathParam(ctx, "project")
	filePath := ctx.QueryParam("path")
	if filePath == "" {
		return c.HandleError(ctx, nil, "Missing required query parameter: path", http.StatusBadRequest)
	}

	notes, err := c.DS.NotesByFile(ctx.Request().Context(), projectName, filePath)
	if err != nil {
		return c.HandleDatastoreError(ctx, err, "Project not found")
	}

	return ctx.JSON(http.StatusOK, NotesResponse{Notes: toNoteResponses(notes)})
}

// GetLineNotes handles GET /api/notes/:project/line?path=...&line=...
func (c *Controller) GetLineNotes(ctx echo.Context) error {
	projectName := pathParam(ctx, "project")
	filePath := ctx.QueryParam("path")
	if filePath == "" {
		return c.HandleError(ctx, nil, "Missing required query parameter: path", http.StatusBadRequest)
	}

	line, err := strconv.Atoi(ctx.QueryParam("line"))
	if err != nil {
		return c.HandleError(ctx, err, "Query parameter line must be an integer", http.StatusBadRequest)
	}

	notes, err := c.DS.NotesByLine(ctx.Request().Context(), projectName, filePath, line)
	if err != nil {
		return c.HandleDatastoreError(ctx, err, "Project not found")
	}

	return ctx.JSON(http.StatusOK, NotesResponse{Notes: toNoteResponses(notes)})
}

// GetNote handles GET /api/notes/note/:id
func (c *Controller) GetNote(ctx echo.Context) error {
	id := pathParam(ctx, "id")

	note, err := c.DS.NoteByID(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleDatastoreError(ctx, err, "Note not found")
	}

	return ctx.JSON(http.StatusOK, NoteEnvelope{Note: toNoteResponse(note)})
}

// CreateNote handles POST /api/notes
func (c *Controller) CreateNote(ctx echo.Context) error {
	var req NoteRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if err := validateNoteRequest(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid note payload", http.StatusBadRequest)
	}

	note, err := noteFromRequest(&req, req.ProjectName)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid note payload", http.StatusBadRequest)
	}

	if err := c.DS.CreateNote(ctx.Request().Context(), &note); err != nil {
		return c.HandleDatastoreError(ctx, err, "Project not found")
	}

	c.statsCache.Delete(note.ProjectName)
	c.Debug("Created note %s for project %s at %s:%d",
		note.ID, note.ProjectName, note.FilePath, note.LineNumber)

	return ctx.JSON(http.StatusOK, NoteEnvelope{Note: toNoteResponse(&note)})
}

// UpdateNote handles PUT /api/notes/:id. The full mutable field set is
// applied as supplied; state and source fall back to their defaults when
// the payload omits them, matching the create contract.
func (c *Controller) UpdateNote(ctx echo.Context) error {
	id := pathParam(ctx, "id")

	var req NoteRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if err := validateNoteRequest(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid note payload", http.StatusBadRequest)
	}

	if req.State == "" {
		req.State = datastore.StateTodo
	}
	if req.Source == "" {
		req.Source = datastore.SourceNative
	}

	update := &datastore.NoteUpdate{
		FilePath:    req.FilePath,
		LineNumber:  req.LineNumber,
		Author:      req.Author,
		Comment:     req.Comment,
		Description: req.Description,
		CWE:         req.CWE,
		State:       req.State,
		Severity:    req.Severity,
		Source:      req.Source,
	}

	note, err := c.DS.UpdateNote(ctx.Request().Context(), id, update)
	if err != nil {
		return c.HandleDatastoreError(ctx, err, "Note not found")
	}

	return ctx.JSON(http.StatusOK, NoteEnvelope{Note: toNoteResponse(note)})
}

// DeleteNoteOrProject handles DELETE /api/notes/:key, which serves two
// operations on one route. The key is tried as a note id first; when no
// note matches, a UUID-shaped key reports the missing note and anything
// else is treated as a project name whose notes are cleared wholesale.
func (c *Controller) DeleteNoteOrProject(ctx echo.Context) error {
	key := pathParam(ctx, "key")
	rctx := ctx.Request().Context()

	err := c.DS.DeleteNote(rctx, key)
	if err == nil {
		// The deleted note's project is not known here, drop all counts
		c.statsCache.Flush()
		c.Debug("Deleted note %s", key)
		return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
	}
	if !errors.IsNotFound(err) {
		return c.HandleDatastoreError(ctx, err, "Note not found")
	}

	if _, uuidErr := uuid.Parse(key); uuidErr == nil {
		return c.HandleError(ctx, err, "Note not found", http.StatusNotFound)
	}

	deleted, err := c.DS.ClearProject(rctx, key)
	if err != nil {
		return c.HandleDatastoreError(ctx, err, "Project not found")
	}

	c.statsCache.Delete(key)
	c.Debug("Cleared %d notes from project %s", deleted, key)
	return ctx.JSON(http.StatusOK, ClearProjectResponse{Success: true, DeletedCount: deleted})
}

// ReplaceProjectNotes handles PUT /api/notes/:project/replace. The entire
// note set of the project is swapped for the payload in one transaction.
func (c *Controller) ReplaceProjectNotes(ctx echo.Context) error {
	projectName := pathParam(ctx, "project")

	var req ReplaceNotesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	notes := make([]datastore.Note, 0, len(req.Notes))
	for i := range req.Notes {
		if err := validateReplaceItem(&req.Notes[i], i); err != nil {
			return c.HandleError(ctx, err, "Invalid note payload", http.StatusBadRequest)
		}
		note, err := noteFromRequest(&req.Notes[i], projectName)
		if err != nil {
			return c.HandleError(ctx, fmt.Errorf("notes[%d]: %w", i, err),
				"Invalid note payload", http.StatusBadRequest)
		}
		notes = append(notes, note)
	}

	count, err := c.DS.ReplaceProjectNotes(ctx.Request().Context(), projectName, notes)
	if err != nil {
		return c.HandleDatastoreError(ctx, err, "Project not found")
	}

	c.statsCache.Delete(projectName)
	c.Debug("Replaced notes for project %s, new count %d", projectName, count)
	return ctx.JSON(http.StatusOK, ReplaceNotesResponse{Success: true, Count: count})
}
