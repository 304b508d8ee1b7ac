package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"agentbus/pkg/bus"
	"agentbus/pkg/config"
	"agentbus/pkg/core"
	"agentbus/pkg/invite"
	"agentbus/pkg/logger"
	"agentbus/pkg/presence"
	"agentbus/pkg/store"
	"agentbus/pkg/wait"
)

// newTestServer builds a Server around a real core stack so handler
// tests exercise the full request path minus the listener.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: logger.LevelError})
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}

	dir := t.TempDir()
	st, err := store.OpenAt(context.Background(), filepath.Join(dir, "bus.db"), log)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	cfg.Upload.Dir = filepath.Join(dir, "uploads")

	b := bus.New(log, 64)
	w := wait.New(st, b, log)
	pres := presence.New(st, b, log, cfg.Presence.HeartbeatTimeout(), cfg.Presence.SweepInterval())
	catalog := invite.NewCatalog(filepath.Join(dir, "available_agents.json"), log)
	inv := invite.NewExecutor(catalog, log, filepath.Join(dir, "invocations"), cfg.Server.BaseURL())
	api := core.New(st, b, w, pres, inv, cfg, log)

	return &Server{api: api, config: cfg, logger: log}
}

func jsonRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return payload
}

func TestHandleCreateAndGetThread(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/threads", `{"topic": "deploy plan"}`), rec)
	if err := s.handleCreateThread(c); err != nil {
		t.Fatalf("handleCreateThread: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	if id == "" || created["topic"] != "deploy plan" {
		t.Fatalf("created thread = %v", created)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/threads/"+id, nil), rec)
	c.SetPath("/api/threads/:id")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: id}})
	if err := s.handleGetThread(c); err != nil {
		t.Fatalf("handleGetThread: %v", err)
	}
	got := decodeBody(t, rec)
	if got["id"] != id {
		t.Errorf("get returned %v", got)
	}
}

func TestHandleCreateThreadRejectsBlankTopic(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/threads", `{"topic": "   "}`), rec)
	if err := s.handleCreateThread(c); err != nil {
		t.Fatalf("handleCreateThread: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["kind"] != "invalid_input" {
		t.Errorf("error body = %v", payload)
	}
}

func TestHandleGetThreadNotFound(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/threads/nope", nil), rec)
	c.SetPath("/api/threads/:id")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: "nope"}})
	if err := s.handleGetThread(c); err != nil {
		t.Fatalf("handleGetThread: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if decodeBody(t, rec)["kind"] != "not_found" {
		t.Error("error kind missing from body")
	}
}

func TestHandleListThreadsEmptyIsArray(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/threads", nil), rec)
	if err := s.handleListThreads(c); err != nil {
		t.Fatalf("handleListThreads: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"threads":[]`) {
		t.Errorf("empty list must serialize as [], got %s", rec.Body.String())
	}
}

func TestHandlePostAndListMessages(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()
	ctx := context.Background()

	th, err := s.api.CreateThread(ctx, "topic", nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/threads/"+th.ID+"/messages",
		`{"author": "tester", "role": "assistant", "content": "hello"}`), rec)
	c.SetPath("/api/threads/:id/messages")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: th.ID}})
	if err := s.handlePostMessage(c); err != nil {
		t.Fatalf("handlePostMessage: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("post status = %d: %s", rec.Code, rec.Body.String())
	}
	msg := decodeBody(t, rec)
	if msg["content"] != "hello" || msg["seq"].(float64) != 1 {
		t.Errorf("message = %v", msg)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/threads/"+th.ID+"/messages?after_seq=0", nil), rec)
	c.SetPath("/api/threads/:id/messages")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: th.ID}})
	if err := s.handleListMessages(c); err != nil {
		t.Fatalf("handleListMessages: %v", err)
	}
	listed := decodeBody(t, rec)
	msgs, _ := listed["messages"].([]any)
	if len(msgs) != 1 {
		t.Errorf("listed %d messages", len(msgs))
	}
}

func TestHandleSetThreadStateBadState(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	th, err := s.api.CreateThread(context.Background(), "topic", nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/threads/"+th.ID+"/state", `{"state": "flying"}`), rec)
	c.SetPath("/api/threads/:id/state")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: th.ID}})
	if err := s.handleSetThreadState(c); err != nil {
		t.Fatalf("handleSetThreadState: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCloseThenCloseAgainConflicts(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	th, err := s.api.CreateThread(context.Background(), "topic", nil)
	if err != nil {
		t.Fatal(err)
	}

	close1 := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/threads/"+th.ID+"/close", `{"summary": "done"}`), close1)
	c.SetPath("/api/threads/:id/close")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: th.ID}})
	if err := s.handleCloseThread(c); err != nil {
		t.Fatalf("handleCloseThread: %v", err)
	}
	if close1.Code != http.StatusOK {
		t.Fatalf("close status = %d", close1.Code)
	}
	if decodeBody(t, close1)["summary"] != "done" {
		t.Error("summary not echoed back")
	}

	close2 := httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, "/api/threads/"+th.ID+"/close", `{}`), close2)
	c.SetPath("/api/threads/:id/close")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: th.ID}})
	if err := s.handleCloseThread(c); err != nil {
		t.Fatalf("handleCloseThread: %v", err)
	}
	if close2.Code != http.StatusConflict {
		t.Errorf("second close status = %d, want 409", close2.Code)
	}
}

func TestHandleArchiveRoundTrip(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	th, err := s.api.CreateThread(context.Background(), "topic", nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/threads/"+th.ID+"/archive", nil), rec)
	c.SetPath("/api/threads/:id/archive")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: th.ID}})
	if err := s.handleArchiveThread(c); err != nil {
		t.Fatalf("handleArchiveThread: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/api/threads/"+th.ID+"/unarchive", nil), rec)
	c.SetPath("/api/threads/:id/unarchive")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: th.ID}})
	if err := s.handleUnarchiveThread(c); err != nil {
		t.Fatalf("handleUnarchiveThread: %v", err)
	}
	restored := decodeBody(t, rec)
	if restored["status"] != "discuss" {
		t.Errorf("restored status = %v", restored["status"])
	}
}

func TestHandleDeleteThread(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	th, err := s.api.CreateThread(context.Background(), "topic", nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/api/threads/"+th.ID, nil), rec)
	c.SetPath("/api/threads/:id")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: th.ID}})
	if err := s.handleDeleteThread(c); err != nil {
		t.Fatalf("handleDeleteThread: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	if _, err := s.api.GetThread(context.Background(), th.ID); err == nil {
		t.Error("thread still fetchable after delete")
	}
}

func TestQueryBool(t *testing.T) {
	e := echo.New()
	tests := []struct {
		query string
		want  bool
	}{
		{"flag=1", true},
		{"flag=true", true},
		{"flag=yes", true},
		{"flag=0", false},
		{"flag=no", false},
		{"", false},
	}
	for _, tt := range tests {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil), httptest.NewRecorder())
		if got := queryBool(c, "flag"); got != tt.want {
			t.Errorf("queryBool(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
