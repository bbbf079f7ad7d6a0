// test_utils_test.go: shared test fixtures for API endpoint tests
package api

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/screwnvim/screw-server/internal/conf"
	"github.com/screwnvim/screw-server/internal/datastore"
	"github.com/screwnvim/screw-server/internal/errors"
)

// MockDataStore implements datastore.Interface for handler tests.
type MockDataStore struct {
	mock.Mock
}

func (m *MockDataStore) Open() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDataStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDataStore) NotesByProject(ctx context.Context, projectName string) ([]datastore.Note, error) {
	args := m.Called(ctx, projectName)
	notes, _ := args.Get(0).([]datastore.Note)
	return notes, args.Error(1)
}

func (m *MockDataStore) NotesByFile(ctx context.Context, projectName, filePath string) ([]datastore.Note, error) {
	args := m.Called(ctx, projectName, filePath)
	notes, _ := args.Get(0).([]datastore.Note)
	return notes, args.Error(1)
}

func (m *MockDataStore) NotesByLine(ctx context.Context, projectName, filePath string, lineNumber int) ([]datastore.Note, error) {
	args := m.Called(ctx, projectName, filePath, lineNumber)
	notes, _ := args.Get(0).([]datastore.Note)
	return notes, args.Error(1)
}

func (m *MockDataStore) NoteByID(ctx context.Context, id string) (*datastore.Note, error) {
	args := m.Called(ctx, id)
	note, _ := args.Get(0).(*datastore.Note)
	return note, args.Error(1)
}

func (m *MockDataStore) CreateNote(ctx context.Context, note *datastore.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockDataStore) UpdateNote(ctx context.Context, id string, update *datastore.NoteUpdate) (*datastore.Note, error) {
	args := m.Called(ctx, id, update)
	note, _ := args.Get(0).(*datastore.Note)
	return note, args.Error(1)
}

func (m *MockDataStore) DeleteNote(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataStore) ClearProject(ctx context.Context, projectName string) (int64, error) {
	args := m.Called(ctx, projectName)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataStore) ReplaceProjectNotes(ctx context.Context, projectName string, notes []datastore.Note) (int64, error) {
	args := m.Called(ctx, projectName, notes)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataStore) CountNotes(ctx context.Context, projectName string) (int64, error) {
	args := m.Called(ctx, projectName)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataStore) AppendReply(ctx context.Context, parentID string, reply *datastore.Reply) error {
	args := m.Called(ctx, parentID, reply)
	return args.Error(0)
}

// setupTestEnvironment creates an Echo instance, a mock datastore and a
// fully routed controller, mirroring the production wiring minus metrics.
func setupTestEnvironment(t *testing.T) (*echo.Echo, *MockDataStore, *Controller) {
	t.Helper()

	e := echo.New()
	mockDS := new(MockDataStore)

	settings := &conf.Settings{}
	settings.Server.Name = "screw-test"

	logger := log.New(os.Stdout, "API TEST: ", log.LstdFlags)

	controller, err := New(e, mockDS, settings, logger, nil)
	if err != nil {
		t.Fatalf("Failed to create test API controller: %v", err)
	}
	t.Cleanup(controller.Shutdown)

	return e, mockDS, controller
}

// jsonRequest builds a request with a JSON body ready for binding.
func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// sampleNote returns a stored-note fixture as the repository would hand it
// back, timestamps already server-assigned.
func sampleNote(id string) *datastore.Note {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &datastore.Note{
		ID:          id,
		ProjectID:   1,
		ProjectName: "backend",
		FilePath:    "src/auth.go",
		LineNumber:  42,
		Author:      "alice",
		UserID:      "alice",
		Timestamp:   ts,
		Comment:     "check bounds before indexing",
		State:       datastore.StateTodo,
		Source:      datastore.SourceNative,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

// notFoundErr builds the not-found error shape the repository layer emits.
func notFoundErr(resource string) error {
	return errors.Newf("%s not found", resource).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Build()
}

// conflictErr builds the conflict error shape the repository layer emits.
func conflictErr() error {
	return errors.Newf("duplicate identifier").
		Component("datastore").
		Category(errors.CategoryConflict).
		Build()
}
