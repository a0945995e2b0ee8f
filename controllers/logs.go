package controllers

import (
	"bimbel_go/middleware"
	"bimbel_go/services"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type LogController struct {
	logs    *services.ActivityLogger
	archive *services.LogArchiveService
	loc     *time.Location
}

func NewLogController(logs *services.ActivityLogger, archive *services.LogArchiveService, loc *time.Location) *LogController {
	if loc == nil {
		loc = time.Local
	}
	return &LogController{logs: logs, archive: archive, loc: loc}
}

// GetLogs returns a page of activity logs. Filters: admin_id, action,
// resource, start_date and end_date (YYYY-MM-DD, inclusive).
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	f := services.LogFilter{
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 50),
	}
	if id, ok := queryUint(c, "admin_id"); ok {
		f.AdminID = id
	}
	if raw := c.Query("start_date"); raw != "" {
		if t, err := time.ParseInLocation("2006-01-02", raw, lc.loc); err == nil {
			f.From = &t
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if t, err := time.ParseInLocation("2006-01-02", raw, lc.loc); err == nil {
			end := t.AddDate(0, 0, 1)
			f.To = &end
		}
	}

	rows, total, err := lc.logs.List(c.UserContext(), f)
	if err != nil {
		logrus.WithError(err).Error("Failed to retrieve logs")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 50
	}
	return c.JSON(fiber.Map{
		"logs":        rows,
		"total":       total,
		"page":        f.Page,
		"limit":       f.Limit,
		"total_pages": (total + int64(f.Limit) - 1) / int64(f.Limit),
	})
}

func (lc *LogController) GetLogStats(c *fiber.Ctx) error {
	now := time.Now().In(lc.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, lc.loc)
	stats, err := lc.logs.Stats(c.UserContext(), dayStart)
	if err != nil {
		logrus.WithError(err).Error("Failed to compute log stats")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	return c.JSON(fiber.Map{"stats": stats})
}

// FlushLogs moves Redis-cached logs into the database.
func (lc *LogController) FlushLogs(c *fiber.Ctx) error {
	n, err := lc.archive.FlushCachedLogsToDatabase(c.UserContext())
	if err != nil {
		logrus.WithError(err).Error("Failed to flush cached logs")
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	}
	return c.JSON(fiber.Map{
		"message": middleware.T(c, "save_success"),
		"flushed": n,
	})
}

// ArchiveLogs archives logs older than ?days= (default 30) to object storage.
func (lc *LogController) ArchiveLogs(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	archive, err := lc.archive.ArchiveOldLogs(c.UserContext(), days)
	if err != nil {
		logrus.WithError(err).WithField("days", days).Error("Failed to archive logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   middleware.T(c, "save_failed"),
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": middleware.T(c, "save_success"),
		"archive": archive,
	})
}

func (lc *LogController) GetArchives(c *fiber.Ctx) error {
	archives, err := lc.archive.GetArchivedLogs(c.UserContext())
	if err != nil {
		logrus.WithError(err).Error("Failed to list log archives")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	return c.JSON(fiber.Map{"archives": archives, "total": len(archives)})
}

func (lc *LogController) DownloadArchive(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	body, name, err := lc.archive.DownloadArchivedLogs(c.UserContext(), id)
	if errors.Is(err, services.ErrArchiveNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "not_found")
	}
	if err != nil {
		logrus.WithError(err).WithField("archive_id", id).Error("Failed to download log archive")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Attachment(name)
	return c.SendStream(body)
}
