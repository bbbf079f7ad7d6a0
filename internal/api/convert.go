// internal/api/convert.go
package api

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/screwnvim/screw-server/internal/datastore"
)

// noteTimeFormats lists the accepted client timestamp layouts. Editor
// clients send RFC 3339, older ones send a bare ISO form without a zone,
// which is interpreted as UTC.
var noteTimeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseClientTime parses a client-supplied timestamp. An empty string
// returns the zero time, the repository substitutes the server clock.
func parseClientTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range noteTimeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// formatTime renders a stored timestamp for the wire.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toNoteResponse converts a stored note to its wire representation.
func toNoteResponse(note *datastore.Note) NoteResponse {
	resp := NoteResponse{
		ID:          note.ID,
		ProjectName: note.ProjectName,
		FilePath:    note.FilePath,
		LineNumber:  note.LineNumber,
		Author:      note.Author,
		UserID:      note.UserID,
		Timestamp:   formatTime(note.Timestamp),
		Comment:     note.Comment,
		Description: note.Description,
		CWE:         note.CWE,
		State:       note.State,
		Severity:    note.Severity,
		Source:      note.Source,
		CreatedAt:   formatTime(note.CreatedAt),
		UpdatedAt:   formatTime(note.UpdatedAt),
		Replies:     toReplyResponses(note.Replies),
	}
	if len(note.ImportMetadata) > 0 {
		resp.ImportMetadata = json.RawMessage(note.ImportMetadata)
	}
	return resp
}

// toNoteResponses converts a note listing. The result is never nil so the
// notes field always serializes as an array.
func toNoteResponses(notes []datastore.Note) []NoteResponse {
	out := make([]NoteResponse, 0, len(notes))
	for i := range notes {
		out = append(out, toNoteResponse(&notes[i]))
	}
	return out
}

// toReplyResponse converts a stored reply to its wire representation.
func toReplyResponse(reply *datastore.Reply) ReplyResponse {
	return ReplyResponse{
		ID:        reply.ID,
		ParentID:  reply.ParentID,
		Author:    reply.Author,
		UserID:    reply.UserID,
		Timestamp: formatTime(reply.Timestamp),
		Comment:   reply.Comment,
	}
}

// toReplyResponses converts a reply thread. The result is never nil so the
// replies field always serializes as an array, including for notes that
// have no replies yet.
func toReplyResponses(replies []datastore.Reply) []ReplyResponse {
	out := make([]ReplyResponse, 0, len(replies))
	for i := range replies {
		out = append(out, toReplyResponse(&replies[i]))
	}
	return out
}

// noteFromRequest converts an incoming payload to the storage model. The
// repository fills the identifier and timestamps the client left out.
func noteFromRequest(req *NoteRequest, projectName string) (datastore.Note, error) {
	ts, err := parseClientTime(req.Timestamp)
	if err != nil {
		return datastore.Note{}, err
	}

	note := datastore.Note{
		ID:          req.ID,
		ProjectName: projectName,
		FilePath:    req.FilePath,
		LineNumber:  req.LineNumber,
		Author:      req.Author,
		UserID:      req.UserID,
		Timestamp:   ts,
		Comment:     req.Comment,
		Description: req.Description,
		CWE:         req.CWE,
		State:       req.State,
		Severity:    req.Severity,
		Source:      req.Source,
	}

	if req.ImportMetadata != nil {
		raw, err := json.Marshal(req.ImportMetadata)
		if err != nil {
			return datastore.Note{}, fmt.Errorf("import_metadata is not serializable: %w", err)
		}
		note.ImportMetadata = datatypes.JSON(raw)
	}

	return note, nil
}
