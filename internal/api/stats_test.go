// stats_test.go: statistics endpoint and cache behavior tests
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetProjectStats(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("CountNotes", mock.Anything, "backend").Return(int64(7), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/backend", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, float64(7), response["total_notes"])
	assert.Equal(t, "backend", response["project_name"])

	mockDS.AssertExpectations(t)
}

func TestGetProjectStatsServedFromCache(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("CountNotes", mock.Anything, "backend").Return(int64(7), nil)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/stats/backend", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	// Editor status lines poll this endpoint, repeated hits inside the TTL
	// must not reach the database.
	mockDS.AssertNumberOfCalls(t, "CountNotes", 1)
}

func TestStatsCacheInvalidatedByMutation(t *testing.T) {
	e, mockDS, _ := setupTestEnvironment(t)

	mockDS.On("CountNotes", mock.Anything, "backend").Return(int64(1), nil)
	mockDS.On("CreateNote", mock.Anything, mock.Anything).Return(nil)

	statsReq := func() {
		req := httptest.NewRequest(http.MethodGet, "/api/stats/backend", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	statsReq()

	body := `{"file_path": "a.go", "line_number": 1, "author": "alice", "comment": "x", "project_name": "backend", "user_id": "alice"}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/notes", body))
	assert.Equal(t, http.StatusOK, rec.Code)

	statsReq()

	// The create dropped the cached count, the second stats call recounts.
	mockDS.AssertNumberOfCalls(t, "CountNotes", 2)
}
