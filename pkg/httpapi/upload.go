package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"agentbus/pkg/model"
)

// handleUploadImage stores a multipart image under the uploads dir and
// returns where it can be fetched. Filenames get a uuid prefix so
// concurrent uploads of "screenshot.png" never collide.
func (s *Server) handleUploadImage(c *echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return s.writeError(c, model.InvalidInput("missing file field"))
	}
	if max := s.config.Upload.MaxBytes; max > 0 && fileHeader.Size > max {
		return s.writeError(c, model.InvalidInput("file exceeds %d bytes", max))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return s.writeError(c, model.Internal(err, "opening upload"))
	}
	defer src.Close()

	if err := os.MkdirAll(s.config.Upload.Dir, 0o755); err != nil {
		return s.writeError(c, model.Internal(err, "creating upload dir"))
	}

	name := uuid.NewString()[:8] + "-" + filepath.Base(fileHeader.Filename)
	dstPath := filepath.Join(s.config.Upload.Dir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return s.writeError(c, model.Internal(err, "creating upload file"))
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return s.writeError(c, model.Internal(err, "writing upload"))
	}

	s.logger.Info("Image uploaded",
		zap.String("name", name),
		zap.Int64("bytes", fileHeader.Size))

	return c.JSON(http.StatusOK, model.ImageRef{
		URL:  "/static/uploads/" + name,
		Name: fileHeader.Filename,
	})
}

// startRetentionSweep schedules a daily cleanup of old uploads when a
// retention window is configured.
func (s *Server) startRetentionSweep() {
	days := s.config.Upload.RetentionDays
	if days <= 0 {
		return
	}

	s.retention = cron.New()
	_, err := s.retention.AddFunc("@daily", func() {
		removed, err := sweepUploads(s.config.Upload.Dir, time.Duration(days)*24*time.Hour)
		if err != nil {
			s.logger.Warn("Upload retention sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			s.logger.Info("Upload retention sweep removed files", zap.Int("count", removed))
		}
	})
	if err != nil {
		s.logger.Warn("Scheduling upload retention failed", zap.Error(err))
		return
	}
	s.retention.Start()
	s.logger.Info("Upload retention enabled", zap.Int("days", days))
}

// sweepUploads deletes regular files older than maxAge.
func sweepUploads(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
