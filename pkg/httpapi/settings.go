package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"go.uber.org/zap"

	"agentbus/pkg/model"
)

// settingsView is the mutable subset of configuration exposed to the
// console.
type settingsView struct {
	Language           string `json:"language"`
	WaitTimeoutSeconds int    `json:"wait_timeout_seconds"`
}

func (s *Server) handleGetSettings(c *echo.Context) error {
	return c.JSON(http.StatusOK, settingsView{
		Language:           s.config.GetLanguage(),
		WaitTimeoutSeconds: s.config.Wait.DefaultTimeoutSeconds,
	})
}

func (s *Server) handleUpdateSettings(c *echo.Context) error {
	var body settingsView
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, model.InvalidInput("invalid request body"))
	}

	if body.Language != "" {
		s.config.SetLanguage(body.Language)
	}
	if body.WaitTimeoutSeconds > 0 {
		if max := s.config.Wait.MaxTimeoutSeconds; max > 0 && body.WaitTimeoutSeconds > max {
			return s.writeError(c, model.InvalidInput("wait timeout exceeds the %d second cap", max))
		}
		s.config.SetWaitDefaultTimeout(body.WaitTimeoutSeconds)
	}

	if err := s.loader.SaveCurrent(s.config); err != nil {
		s.logger.Warn("Persisting settings failed", zap.Error(err))
	}

	return c.JSON(http.StatusOK, settingsView{
		Language:           s.config.GetLanguage(),
		WaitTimeoutSeconds: s.config.Wait.DefaultTimeoutSeconds,
	})
}
