// notes_test.go: note endpoint handler and routing tests
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/screwnvim/screw-server/internal/datastore"
)

func TestGetProjectNotes(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	stored := []datastore.Note{*sampleNote("note-1"), *sampleNote("note-2")}
	mockDS.On("NotesByProject", mock.Anything, "backend").Return(stored, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/notes/backend", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/notes/:project")
	c.SetParamNames("project")
	c.SetParamValues("backend")

	require.NoError(t, controller.GetProjectNotes(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	notes, ok := response["notes"].([]any)
	require.True(t, ok, "payload must carry a notes array")
	require.Len(t, notes, 2)

	first, ok := notes[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "note-1", first["id"])
	assert.Equal(t, "backend", first["project_name"])
	assert.Equal(t, "alice", first["user_id"])
	assert.Equal(t, "2025-03-01T12:00:00Z", first["timestamp"])

	replies, ok := first["replies"].([]any)
	require.True(t, ok, "replies must serialize as an array even when empty")
	assert.Empty(t, replies)

	mockDS.AssertExpectations(t)
}

func TestGetProjectNotesDecodesEscapedName(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	mockDS.On("NotesByProject", mock.Anything, "my project").Return([]datastore.Note{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/notes/my%20project", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/notes/:project")
	c.SetParamNames("project")
	c.SetParamValues("my%20project")

	require.NoError(t, controller.GetProjectNotes(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	mockDS.AssertExpectations(t)
}

func TestGetFileNotesRequiresPath(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notes/backend/file", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("project")
	c.SetParamValues("backend")

	require.NoError(t, controller.GetFileNotes(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockDS.AssertNotCalled(t, "NotesByFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetFileNotes(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	mockDS.On("NotesByFile", mock.Anything, "backend", "src/auth.go").
		Return([]datastore.Note{*sampleNote("note-1")}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/notes/backend/file?path=src%2Fauth.go", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("project")
	c.SetParamValues("backend")

	require.NoError(t, controller.GetFileNotes(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	mockDS.AssertExpectations(t)
}

func TestGetLineNotesRejectsBadLine(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notes/backend/line?path=a.go&line=abc", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("project")
	c.SetParamValues("backend")

	require.NoError(t, controller.GetLineNotes(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockDS.AssertNotCalled(t, "NotesByLine", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetLineNotes(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	mockDS.On("NotesByLine", mock.Anything, "backend", "a.go", 42).
		Return([]datastore.Note{*sampleNote("note-1")}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/notes/backend/line?path=a.go&line=42", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("project")
	c.SetParamValues("backend")

	require.NoError(t, controller.GetLineNotes(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	mockDS.AssertExpectations(t)
}

func TestGetNoteMissing(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	mockDS.On("NoteByID", mock.Anything, "ghost").Return(nil, notFoundErr("note"))

	req := httptest.NewRequest(http.MethodGet, "/api/notes/note/ghost", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("ghost")

	require.NoError(t, controller.GetNote(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Note not found", response.Message)
}

// The static "note" path segment must win over the :project parameter so
// single-note lookups do not read as listings of a project named "note".
func TestSingleNoteRouteBeatsProjectListing(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("NoteByID", mock.Anything, "abc").Return(sampleNote("abc"), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/notes/note/abc", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockDS.AssertExpectations(t)
	mockDS.AssertNotCalled(t, "NotesByProject", mock.Anything, mock.Anything)
}

func TestCreateNote(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	assigned := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mockDS.On("CreateNote", mock.Anything, mock.AnythingOfType("*datastore.Note")).
		Run(func(args mock.Arguments) {
			note := args.Get(1).(*datastore.Note)
			// The repository assigns identity and timestamps on create.
			note.ID = "3f2c6be8-8f5a-47cd-9d40-111111111111"
			note.Timestamp = assigned
			note.CreatedAt = assigned
			note.UpdatedAt = assigned
		}).
		Return(nil)

	body := `{
		"file_path": "src/auth.go",
		"line_number": 42,
		"author": "alice",
		"comment": "check bounds before indexing",
		"project_name": "backend",
		"user_id": "alice",
		"import_metadata": {"tool": "semgrep"}
	}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/notes", body))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	note, ok := response["note"].(map[string]any)
	require.True(t, ok, "payload must wrap the note in an envelope")
	assert.Equal(t, "3f2c6be8-8f5a-47cd-9d40-111111111111", note["id"])
	assert.Equal(t, "2025-03-01T12:00:00Z", note["timestamp"])

	meta, ok := note["import_metadata"].(map[string]any)
	require.True(t, ok, "import metadata passes through opaquely")
	assert.Equal(t, "semgrep", meta["tool"])

	replies, ok := note["replies"].([]any)
	require.True(t, ok)
	assert.Empty(t, replies)

	mockDS.AssertExpectations(t)
}

func TestCreateNoteValidatesPayload(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	cases := []struct {
		name string
		body string
	}{
		{
			name: "missing required fields",
			body: `{"file_path": "a.go", "line_number": 1}`,
		},
		{
			name: "line number below one",
			body: `{"file_path": "a.go", "line_number": 0, "author": "alice", "comment": "x", "project_name": "backend", "user_id": "alice"}`,
		},
		{
			name: "unparseable timestamp",
			body: `{"file_path": "a.go", "line_number": 1, "author": "alice", "comment": "x", "project_name": "backend", "user_id": "alice", "timestamp": "yesterday"}`,
		},
		{
			name: "malformed json",
			body: `{"file_path": `,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/notes", tc.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	mockDS.AssertNotCalled(t, "CreateNote", mock.Anything, mock.Anything)
}

func TestUpdateNoteDefaultsStateAndSource(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("UpdateNote", mock.Anything, "abc-id", mock.MatchedBy(func(u *datastore.NoteUpdate) bool {
		return u.State == datastore.StateTodo && u.Source == datastore.SourceNative && u.Comment == "updated"
	})).Return(sampleNote("abc-id"), nil)

	body := `{
		"file_path": "src/auth.go",
		"line_number": 42,
		"author": "alice",
		"comment": "updated",
		"project_name": "backend",
		"user_id": "alice"
	}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPut, "/api/notes/abc-id", body))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	note, ok := response["note"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abc-id", note["id"])

	mockDS.AssertExpectations(t)
}

func TestUpdateNoteMissing(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("UpdateNote", mock.Anything, "ghost", mock.Anything).Return(nil, notFoundErr("note"))

	body := `{"file_path": "a.go", "line_number": 1, "author": "alice", "comment": "x", "project_name": "backend", "user_id": "alice"}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPut, "/api/notes/ghost", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteNote(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	id := "3f2c6be8-8f5a-47cd-9d40-222222222222"
	mockDS.On("DeleteNote", mock.Anything, id).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/notes/"+id, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])
	assert.NotContains(t, response, "deleted_count", "single-note delete has no count")

	mockDS.AssertNotCalled(t, "ClearProject", mock.Anything, mock.Anything)
}

func TestDeleteMissingNoteWithUUIDKey(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	id := "3f2c6be8-8f5a-47cd-9d40-333333333333"
	mockDS.On("DeleteNote", mock.Anything, id).Return(notFoundErr("note"))

	req := httptest.NewRequest(http.MethodDelete, "/api/notes/"+id, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// A UUID-shaped key is a note reference, never a project name.
	assert.Equal(t, http.StatusNotFound, rec.Code)
	mockDS.AssertNotCalled(t, "ClearProject", mock.Anything, mock.Anything)
}

func TestDeleteFallsBackToProjectClear(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("DeleteNote", mock.Anything, "backend").Return(notFoundErr("note"))
	mockDS.On("ClearProject", mock.Anything, "backend").Return(int64(3), nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/notes/backend", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])
	assert.Equal(t, float64(3), response["deleted_count"])

	mockDS.AssertExpectations(t)
}

func TestReplaceProjectNotes(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("ReplaceProjectNotes", mock.Anything, "backend", mock.MatchedBy(func(notes []datastore.Note) bool {
		return len(notes) == 2 &&
			notes[0].ID == "11111111-1111-1111-1111-111111111111" &&
			notes[0].ProjectName == "backend" &&
			notes[1].ID == ""
	})).Return(int64(2), nil)

	body := `{"notes": [
		{"id": "11111111-1111-1111-1111-111111111111", "file_path": "a.go", "line_number": 1, "author": "alice", "comment": "one", "timestamp": "2025-02-14T08:30:00Z"},
		{"file_path": "b.go", "line_number": 2, "author": "bob", "comment": "two"}
	]}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPut, "/api/notes/backend/replace", body))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])
	assert.Equal(t, float64(2), response["count"])

	mockDS.AssertExpectations(t)
}

func TestReplaceProjectNotesEmptyPayloadClears(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("ReplaceProjectNotes", mock.Anything, "backend", mock.MatchedBy(func(notes []datastore.Note) bool {
		return len(notes) == 0
	})).Return(int64(0), nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPut, "/api/notes/backend/replace", `{}`))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, float64(0), response["count"])

	mockDS.AssertExpectations(t)
}

func TestReplaceProjectNotesRejectsInvalidItem(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	body := `{"notes": [
		{"file_path": "a.go", "line_number": 1, "author": "alice", "comment": "fine"},
		{"file_path": "b.go", "line_number": 2, "comment": "no author"}
	]}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPut, "/api/notes/backend/replace", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response.Error, "notes[1]", "the failing entry is named")

	mockDS.AssertNotCalled(t, "ReplaceProjectNotes", mock.Anything, mock.Anything, mock.Anything)
}

func TestReplaceProjectNotesConflict(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("ReplaceProjectNotes", mock.Anything, "backend", mock.Anything).
		Return(int64(0), conflictErr())

	body := `{"notes": [
		{"id": "dup", "file_path": "a.go", "line_number": 1, "author": "alice", "comment": "one"},
		{"id": "dup", "file_path": "b.go", "line_number": 2, "author": "bob", "comment": "two"}
	]}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPut, "/api/notes/backend/replace", body))

	assert.Equal(t, http.StatusConflict, rec.Code)
}
