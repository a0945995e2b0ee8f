package middleware

import (
	"bimbel_go/models"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// ActivityRecorder persists admin activity.
type ActivityRecorder interface {
	Record(ctx context.Context, entry models.ActivityLog) error
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Locals("request_id", reqID)
		c.Set(requestIDHeader, reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"duration":   time.Since(start).String(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
			"client_id":  ClientID(c),
			"request_id": reqID,
		})
		if status >= 500 {
			entry.Error("HTTP Request")
		} else {
			entry.Info("HTTP Request")
		}
		return err
	}
}

// LogActivity records an admin action with request metadata and an
// integrity hash. The write happens off the request goroutine.
func LogActivity(c *fiber.Ctx, rec ActivityRecorder, action, resource string, resourceID uint, details interface{}) {
	if rec == nil {
		return
	}

	activityLog := models.ActivityLog{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.IP(),
		UserAgent:  c.Get("User-Agent"),
	}
	if admin := CurrentAdmin(c); admin != nil {
		id := admin.AdminID
		activityLog.AdminID = &id
	}
	activityLog.CreatedAt = time.Now()

	reqID, _ := c.Locals("request_id").(string)
	meta := map[string]interface{}{
		"original_details": details,
		"integrity_hash":   generateIntegrityHash(activityLog),
		"client_id":        ClientID(c),
		"request_id":       reqID,
		"forwarded_for":    c.Get("X-Forwarded-For"),
		"method":           c.Method(),
		"path":             c.Path(),
		"query":            string(c.Request().URI().QueryString()),
		"status_code":      c.Response().StatusCode(),
		"timestamp_utc":    activityLog.CreatedAt.UTC().Unix(),
	}
	if b, err := json.Marshal(meta); err == nil {
		activityLog.Details = b
	}

	go func(al models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in LogActivity goroutine")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rec.Record(ctx, al); err != nil {
			logrus.WithError(err).Error("Failed to save activity log")
		}
	}(activityLog)
}

// generateIntegrityHash creates a hash for tamper detection
func generateIntegrityHash(log models.ActivityLog) string {
	var admin uint
	if log.AdminID != nil {
		admin = *log.AdminID
	}
	data := fmt.Sprintf("%d:%s:%s:%d:%s:%s:%s",
		admin,
		log.Action,
		log.Resource,
		log.ResourceID,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt.Format(time.RFC3339),
	)
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}

// LogActivityMiddleware records successful mutations on admin routes.
func LogActivityMiddleware(rec ActivityRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || strings.Contains(c.Path(), "/auth/") {
			return c.Next()
		}

		err := c.Next()

		action := actionFor(c.Method())
		if action == "" || err != nil || c.Response().StatusCode() >= 400 {
			return err
		}

		var resourceID uint
		if id := c.Params("id"); id != "" {
			if parsed, perr := strconv.ParseUint(id, 10, 32); perr == nil {
				resourceID = uint(parsed)
			}
		}
		LogActivity(c, rec, action, resourceFromPath(c.Path()), resourceID, nil)
		return err
	}
}

func actionFor(method string) string {
	switch method {
	case fiber.MethodPost:
		return "CREATE"
	case fiber.MethodPut, fiber.MethodPatch:
		return "UPDATE"
	case fiber.MethodDelete:
		return "DELETE"
	}
	return ""
}

// resourceFromPath maps /api/<resource>/... to <resource>.
func resourceFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
