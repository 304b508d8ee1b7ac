package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v5"
)

func TestHandleRegisterAgentReturnsToken(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/agents/register",
		`{"name": "coder", "ide": "vscode", "model": "sonnet"}`), rec)
	if err := s.handleRegisterAgent(c); err != nil {
		t.Fatalf("handleRegisterAgent: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["agent_id"] == "" || payload["token"] == "" || payload["name"] != "coder" {
		t.Errorf("register payload = %v", payload)
	}
}

func TestHandleRegisterAgentDerivesName(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/agents/register",
		`{"name": "", "ide": "vscode", "model": "sonnet"}`), rec)
	if err := s.handleRegisterAgent(c); err != nil {
		t.Fatalf("handleRegisterAgent: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["name"]; got != "vscode (sonnet)" {
		t.Errorf("derived name = %v", got)
	}
}

func TestHandleHeartbeatAuthFailure(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	a, err := s.api.RegisterAgent(context.Background(), "secure", "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/agents/heartbeat",
		`{"agent_id": "`+a.ID+`", "token": "wrong"}`), rec)
	if err := s.handleHeartbeat(c); err != nil {
		t.Fatalf("handleHeartbeat: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if decodeBody(t, rec)["kind"] != "unauthorized" {
		t.Error("error kind missing")
	}
}

func TestHandleUnregisterAgent(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	a, err := s.api.RegisterAgent(context.Background(), "leaver", "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/agents/unregister",
		`{"agent_id": "`+a.ID+`", "token": "`+a.Token+`"}`), rec)
	if err := s.handleUnregisterAgent(c); err != nil {
		t.Fatalf("handleUnregisterAgent: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	views, err := s.api.ListAgents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 0 {
		t.Errorf("agent still listed after unregister: %d", len(views))
	}
}

func TestHandleSetTypingUnknownThread(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	a, err := s.api.RegisterAgent(context.Background(), "typist", "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/agents/typing",
		`{"agent_id": "`+a.ID+`", "thread_id": "missing", "typing": true}`), rec)
	if err := s.handleSetTyping(c); err != nil {
		t.Fatalf("handleSetTyping: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleInviteAgentUnknownCatalogEntry(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	th, err := s.api.CreateThread(context.Background(), "topic", nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/agents/invite",
		`{"agent_name": "ghost", "thread_id": "`+th.ID+`"}`), rec)
	if err := s.handleInviteAgent(c); err != nil {
		t.Fatalf("handleInviteAgent: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleListCatalogEmpty(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/agents/available", nil), rec)
	if err := s.handleListCatalog(c); err != nil {
		t.Fatalf("handleListCatalog: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	if err := s.handleHealth(c); err != nil {
		t.Fatalf("handleHealth: %v", err)
	}
	payload := decodeBody(t, rec)
	if payload["status"] != "ok" || payload["service"] != "agentbus" {
		t.Errorf("health payload = %v", payload)
	}
}
