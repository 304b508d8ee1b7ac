package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"agentbus/pkg/model"
)

func (s *Server) handleListAgents(c *echo.Context) error {
	agents, err := s.api.ListAgents(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"agents": agents})
}

func (s *Server) handleRegisterAgent(c *echo.Context) error {
	var body struct {
		Name         string `json:"name"`
		IDE          string `json:"ide"`
		Model        string `json:"model"`
		Capabilities string `json:"capabilities"`
	}
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}
	a, err := s.api.RegisterAgent(c.Request().Context(), body.Name, body.IDE, body.Model, body.Capabilities)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"agent_id": a.ID,
		"name":     a.Name,
		"token":    a.Token,
	})
}

func (s *Server) handleHeartbeat(c *echo.Context) error {
	var body struct {
		AgentID string `json:"agent_id"`
		Token   string `json:"token"`
	}
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}
	if err := s.api.HeartbeatAgent(c.Request().Context(), body.AgentID, body.Token); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleUnregisterAgent(c *echo.Context) error {
	var body struct {
		AgentID string `json:"agent_id"`
		Token   string `json:"token"`
	}
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}
	if err := s.api.UnregisterAgent(c.Request().Context(), body.AgentID, body.Token); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSetTyping(c *echo.Context) error {
	var body struct {
		AgentID  string `json:"agent_id"`
		ThreadID string `json:"thread_id"`
		Typing   bool   `json:"typing"`
	}
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}
	if err := s.api.SetTyping(c.Request().Context(), body.AgentID, body.ThreadID, body.Typing); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleInviteAgent(c *echo.Context) error {
	var body struct {
		AgentName string `json:"agent_name"`
		ThreadID  string `json:"thread_id"`
	}
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}
	result, err := s.api.InviteAgent(c.Request().Context(), body.AgentName, body.ThreadID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleListCatalog(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"agents": s.api.ListCatalog()})
}
