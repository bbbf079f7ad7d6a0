// replies_test.go: reply endpoint handler tests
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

func TestCreateReply(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	assigned := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mockDS.On("AppendReply", mock.Anything, "parent-id", mock.AnythingOfType("*datastore.Reply")).
		Run(func(args mock.Arguments) {
			reply := args.Get(2).(*datastore.Reply)
			reply.ID = "3f2c6be8-8f5a-47cd-9d40-444444444444"
			reply.ParentID = "parent-id"
			reply.Timestamp = assigned
		}).
		Return(nil)

	body := `{"author": "bob", "comment": "agreed", "user_id": "bob@corp"}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/notes/parent-id/replies", body))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	reply, ok := response["reply"].(map[string]any)
	require.True(t, ok, "payload must wrap the reply in an envelope")
	assert.Equal(t, "3f2c6be8-8f5a-47cd-9d40-444444444444", reply["id"])
	assert.Equal(t, "parent-id", reply["parent_id"])
	assert.Equal(t, "bob@corp", reply["user_id"])
	assert.Equal(t, "2025-03-01T12:00:00Z", reply["timestamp"])

	mockDS.AssertExpectations(t)
}

func TestCreateReplyBodyParentIgnored(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	// The URL names the parent, a differing parent_id in the body is noise.
	mockDS.On("AppendReply", mock.Anything, "url-parent", mock.AnythingOfType("*datastore.Reply")).
		Return(nil)

	body := `{"parent_id": "body-parent", "author": "bob", "comment": "agreed", "user_id": "bob"}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/notes/url-parent/replies", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	mockDS.AssertExpectations(t)
}

func TestCreateReplyMissingParent(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("AppendReply", mock.Anything, "ghost", mock.Anything).Return(notFoundErr("note"))

	body := `{"author": "bob", "comment": "into the void", "user_id": "bob"}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/notes/ghost/replies", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Parent note not found", response.Message)
}

func TestCreateReplyValidatesPayload(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing author", `{"comment": "x", "user_id": "bob"}`},
		{"missing comment", `{"author": "bob", "user_id": "bob"}`},
		{"missing user id", `{"author": "bob", "comment": "x"}`},
		{"unparseable timestamp", `{"author": "bob", "comment": "x", "user_id": "bob", "timestamp": "soon"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/notes/parent-id/replies", tc.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	mockDS.AssertNotCalled(t, "AppendReply", mock.Anything, mock.Anything, mock.Anything)
}
