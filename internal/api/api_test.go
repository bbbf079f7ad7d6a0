// api_test.go: controller-level tests for health, errors and middleware
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwnvim/screw-server/internal/errors"
)

func TestHealthCheck(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/health")

	require.NoError(t, controller.HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response HealthCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "screw-test", response.Server, "server name comes from settings")

	parsed, err := time.Parse(time.RFC3339, response.Timestamp)
	require.NoError(t, err, "timestamp should be RFC3339")
	assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)
}

func TestHealthCheckViaRouter(t *testing.T) {
	e, _, _ := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "health must be routed under /api")
}

func TestHandleErrorPayload(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notes/backend", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := controller.HandleError(c, errors.NewStd("boom"), "Something failed", http.StatusInternalServerError)
	require.NoError(t, err, "HandleError responds, it does not propagate")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "boom", response.Error)
	assert.Equal(t, "Something failed", response.Message)
	assert.Equal(t, http.StatusInternalServerError, response.Code)
	assert.Len(t, response.CorrelationID, 8)
}

func TestHandleErrorWithoutCause(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notes/backend/file", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, controller.HandleError(c, nil, "Missing required query parameter: path", http.StatusBadRequest))

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, response.Message, response.Error, "error falls back to the message when there is no cause")
}

func TestHandleDatastoreErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantCode   int
		wantNotice string
	}{
		{
			name:       "not found",
			err:        notFoundErr("note"),
			wantCode:   http.StatusNotFound,
			wantNotice: "Note not found",
		},
		{
			name: "validation",
			err: errors.Newf("project name is required").
				Component("datastore").
				Category(errors.CategoryValidation).
				Build(),
			wantCode:   http.StatusBadRequest,
			wantNotice: "Invalid request",
		},
		{
			name:       "conflict",
			err:        conflictErr(),
			wantCode:   http.StatusConflict,
			wantNotice: "Conflicting identifiers in request",
		},
		{
			name:       "database failure",
			err:        errors.NewStd("disk exploded"),
			wantCode:   http.StatusInternalServerError,
			wantNotice: "Database operation failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _, controller := setupTestEnvironment(t)

			req := httptest.NewRequest(http.MethodGet, "/api/notes/backend", http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, controller.HandleDatastoreError(c, tc.err, "Note not found"))
			assert.Equal(t, tc.wantCode, rec.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.Equal(t, tc.wantNotice, response.Message)
			assert.Equal(t, tc.wantCode, response.Code)
		})
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		id := generateCorrelationID()
		assert.Len(t, id, 8)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 1, "ids should not repeat constantly")
}
