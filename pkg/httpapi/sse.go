package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"go.uber.org/zap"
)

// ssePingInterval paces comment frames that let us notice dead clients.
const ssePingInterval = 15 * time.Second

// handleEvents streams every bus event to the client as SSE frames.
// One bus subscription per connection; dropped events are reconciled by
// the client re-reading through the REST surface.
func (s *Server) handleEvents(c *echo.Context) error {
	w := c.Response()
	flusher := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.api.Subscribe()
	defer s.api.Unsubscribe(sub)

	ctx := c.Request().Context()
	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ping.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return nil
			}
			flusher.Flush()

		case <-sub.Notify():
			for _, ev := range sub.Drain() {
				data, err := json.Marshal(ev)
				if err != nil {
					s.logger.Warn("Encoding event failed", zap.Error(err))
					continue
				}
				if _, err := w.Write([]byte("data: ")); err != nil {
					return nil
				}
				if _, err := w.Write(data); err != nil {
					return nil
				}
				if _, err := w.Write([]byte("\n\n")); err != nil {
					return nil
				}
			}
			flusher.Flush()
		}
	}
}
