// Package httpapi exposes the bus over REST and SSE. It is a thin
// adapter: request parsing here, semantics in the core façade.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"agentbus/pkg/config"
	"agentbus/pkg/core"
	"agentbus/pkg/logger"
	"agentbus/pkg/mcp"
	"agentbus/pkg/model"
)

// Server is the REST/SSE HTTP server. The MCP SSE transport is mounted
// on the same listener so one port serves both surfaces.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	api        *core.API
	mcpServer  *mcp.Server
	config     *config.Config
	loader     *config.Loader
	logger     *logger.Logger
	retention  *cron.Cron
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(api *core.API, mcpServer *mcp.Server, cfg *config.Config, loader *config.Loader, log *logger.Logger) *Server {
	s := &Server{
		api:       api,
		mcpServer: mcpServer,
		config:    cfg,
		loader:    loader,
		logger:    log,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	e := echo.New()

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))

	e.GET("/health", s.handleHealth)
	e.GET("/events", s.handleEvents)

	api := e.Group("/api")

	api.GET("/threads", s.handleListThreads)
	api.POST("/threads", s.handleCreateThread)
	api.GET("/threads/:id", s.handleGetThread)
	api.DELETE("/threads/:id", s.handleDeleteThread)
	api.GET("/threads/:id/messages", s.handleListMessages)
	api.POST("/threads/:id/messages", s.handlePostMessage)
	api.POST("/threads/:id/state", s.handleSetThreadState)
	api.POST("/threads/:id/close", s.handleCloseThread)
	api.POST("/threads/:id/archive", s.handleArchiveThread)
	api.POST("/threads/:id/unarchive", s.handleUnarchiveThread)

	api.GET("/agents", s.handleListAgents)
	api.POST("/agents/register", s.handleRegisterAgent)
	api.POST("/agents/heartbeat", s.handleHeartbeat)
	api.POST("/agents/unregister", s.handleUnregisterAgent)
	api.POST("/agents/typing", s.handleSetTyping)
	api.POST("/agents/invite", s.handleInviteAgent)
	api.GET("/agents/available", s.handleListCatalog)

	api.POST("/upload/image", s.handleUploadImage)
	e.Static("/static/uploads", s.config.Upload.Dir)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handleUpdateSettings)

	sse := echo.WrapHandler(s.mcpServer.SSEHandler())
	e.GET("/sse", sse)
	e.POST("/message", sse)

	s.echo = e
}

// Start begins serving in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.Info("HTTP server starting", zap.String("addr", addr))

	// Use http.Server directly so shutdown is driven by the fx
	// lifecycle rather than Echo's own signal handling.
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.startRetentionSweep()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server stopping")
	if s.retention != nil {
		s.retention.Stop()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "agentbus",
	})
}

// writeError maps core error kinds onto HTTP statuses. Every error
// body carries a machine-readable kind and a human-readable reason.
func (s *Server) writeError(c *echo.Context, err error) error {
	kind := model.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case model.KindNotFound:
		status = http.StatusNotFound
	case model.KindInvalidInput:
		status = http.StatusBadRequest
	case model.KindUnauthorized:
		status = http.StatusUnauthorized
	case model.KindConflict:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	return c.JSON(status, map[string]string{
		"kind":   string(kind),
		"reason": model.ReasonOf(err),
	})
}
