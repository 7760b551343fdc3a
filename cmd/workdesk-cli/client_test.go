package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

func TestReadEvents(t *testing.T) {
	stream := "event: entry\ndata: {\"type\":\"entry\",\"entry\":{\"id\":\"e1\",\"speaker\":\"assistant\",\"text\":\"\"}}\n\n" +
		"event: delta\ndata: {\"type\":\"delta\",\"entry\":{\"id\":\"e1\",\"text\":\"Revenue\"}}\n\n" +
		": keepalive\n\n" +
		"event: done\ndata: {\"type\":\"done\",\"entry\":{\"id\":\"e1\",\"text\":\"Revenue is up\"}}\n"

	var got []domain.Update
	err := readEvents(strings.NewReader(stream), func(u domain.Update) { got = append(got, u) })
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, domain.UpdateEntry, got[0].Type)
	assert.Equal(t, "Revenue", got[1].Entry.Text)
	assert.Equal(t, domain.UpdateDone, got[2].Type)
	assert.Equal(t, "Revenue is up", got[2].Entry.Text)
}

func TestReadEventsRejectsGarbage(t *testing.T) {
	err := readEvents(strings.NewReader("data: {not json\n\n"), func(domain.Update) {})
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line, name, arg string
	}{
		{"hello there", "", ""},
		{"/quit", "quit", ""},
		{"/persona  coding ", "persona", "coding"},
		{"/ATTACH /tmp/q3 report.pdf", "attach", "/tmp/q3 report.pdf"},
	}
	for _, tt := range tests {
		name, arg := parseCommand(tt.line)
		assert.Equal(t, tt.name, name, tt.line)
		assert.Equal(t, tt.arg, arg, tt.line)
	}
}

func TestClientLoginAndSend(t *testing.T) {
	var sentText string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"workspace_id": "ws_1", "view": "dashboard"})
	})
	mux.HandleFunc("/v1/workspaces/ws_1/messages", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		sentText = body["text"]
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: done\ndata: {\"type\":\"done\",\"entry\":{\"text\":\"[MOCK] hi\"}}\n\n")
	})
	mux.HandleFunc("/v1/workspaces/ws_1/persona", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"persona not available for this role"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	st, err := c.Login(context.Background(), "Ana", domain.RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, "ws_1", st.WorkspaceID)

	var updates []domain.Update
	require.NoError(t, c.Send(context.Background(), "hi", func(u domain.Update) { updates = append(updates, u) }))
	assert.Equal(t, "hi", sentText)
	require.Len(t, updates, 1)
	assert.Equal(t, "[MOCK] hi", updates[0].Entry.Text)

	_, err = c.SelectPersona(context.Background(), domain.PersonaHRAssistant)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "persona not available for this role", apiErr.Message)
}

func TestClientAttachDetectsType(t *testing.T) {
	var gotType, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, fh, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.Close()
		gotType = fh.Header.Get("Content-Type")
		gotName = fh.Filename
		json.NewEncoder(w).Encode(domain.Attachment{Filename: fh.Filename, MIMEType: gotType})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "q3.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%test\n"), 0o600))

	c := NewClient(srv.URL)
	c.workspaceID = "ws_1"
	att, err := c.Attach(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", gotType)
	assert.Equal(t, "q3.pdf", gotName)
	assert.Equal(t, "q3.pdf", att.Filename)
}

func TestRendererPlainStreamsDeltas(t *testing.T) {
	var out bytes.Buffer
	r, err := NewRenderer(&out, true, 80)
	require.NoError(t, err)

	r.Update(domain.Update{Type: domain.UpdateEntry, Entry: &domain.Entry{Speaker: domain.SpeakerAssistant}}, "General Assistant")
	r.Update(domain.Update{Type: domain.UpdateDelta, Entry: &domain.Entry{Text: "Revenue"}}, "General Assistant")
	r.Update(domain.Update{Type: domain.UpdateDelta, Entry: &domain.Entry{Text: "Revenue is up"}}, "General Assistant")
	r.Update(domain.Update{Type: domain.UpdateError, Entry: &domain.Entry{Text: "Revenue is up"}, Message: "Connection interruption detected."}, "General Assistant")

	text := out.String()
	assert.Contains(t, text, "General Assistant")
	assert.Equal(t, 1, strings.Count(text, "Revenue is up"))
	assert.Contains(t, text, "Connection interruption detected.")
}
