package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"agentbus/pkg/core"
	"agentbus/pkg/model"
)

func (s *Server) handleListThreads(c *echo.Context) error {
	includeArchived := queryBool(c, "include_archived")
	threads, err := s.api.ListThreads(c.Request().Context(), c.QueryParam("status"), includeArchived)
	if err != nil {
		return s.writeError(c, err)
	}
	if threads == nil {
		threads = []*model.Thread{}
	}
	return c.JSON(http.StatusOK, map[string]any{"threads": threads})
}

func (s *Server) handleCreateThread(c *echo.Context) error {
	var body struct {
		Topic    string            `json:"topic"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}
	t, err := s.api.CreateThread(c.Request().Context(), body.Topic, body.Metadata)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleGetThread(c *echo.Context) error {
	t, err := s.api.GetThread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteThread(c *echo.Context) error {
	if err := s.api.DeleteThread(c.Request().Context(), c.Param("id")); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListMessages(c *echo.Context) error {
	afterSeq, _ := strconv.ParseInt(c.QueryParam("after_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	includeSystem := queryBool(c, "include_system_prompt")

	msgs, err := s.api.ListMessages(c.Request().Context(), c.Param("id"), afterSeq, limit, includeSystem)
	if err != nil {
		return s.writeError(c, err)
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handlePostMessage(c *echo.Context) error {
	var body struct {
		Author     string            `json:"author"`
		AuthorID   string            `json:"author_id"`
		Role       string            `json:"role"`
		Content    string            `json:"content"`
		Mentions   []string          `json:"mentions"`
		Metadata   map[string]string `json:"metadata"`
		Images     []model.ImageRef  `json:"images"`
	}
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}

	msg, err := s.api.PostMessage(c.Request().Context(), core.PostMessageInput{
		ThreadID:   c.Param("id"),
		AuthorID:   body.AuthorID,
		AuthorName: body.Author,
		Role:       body.Role,
		Content:    body.Content,
		Mentions:   body.Mentions,
		Metadata:   body.Metadata,
		Images:     body.Images,
	})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, msg)
}

func (s *Server) handleSetThreadState(c *echo.Context) error {
	var body struct {
		State string `json:"state"`
	}
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}
	t, err := s.api.SetThreadState(c.Request().Context(), c.Param("id"), body.State)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleCloseThread(c *echo.Context) error {
	var body struct {
		Summary string `json:"summary"`
	}
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}
	t, err := s.api.CloseThread(c.Request().Context(), c.Param("id"), body.Summary)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleArchiveThread(c *echo.Context) error {
	if err := s.api.ArchiveThread(c.Request().Context(), c.Param("id")); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleUnarchiveThread(c *echo.Context) error {
	t, err := s.api.UnarchiveThread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func queryBool(c *echo.Context, name string) bool {
	switch c.QueryParam(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}
