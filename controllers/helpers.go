package controllers

import (
	"bimbel_go/middleware"
	"bimbel_go/models"
	"bimbel_go/utils"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const confirmHeader = "X-Confirm-Delete"

// parseID reads the :id route parameter.
func parseID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func badID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": middleware.T(c, "invalid_input"),
	})
}

// deleteConfirmed reports whether the caller acknowledged an irreversible delete.
func deleteConfirmed(c *fiber.Ctx) bool {
	if strings.EqualFold(c.Query("confirm"), "true") {
		return true
	}
	return strings.EqualFold(c.Get(confirmHeader), "true")
}

// confirmRequired answers 428 with the translated irreversibility notice.
func confirmRequired(c *fiber.Ctx) error {
	return c.Status(fiber.StatusPreconditionRequired).JSON(fiber.Map{
		"error":   middleware.T(c, "confirm_delete"),
		"confirm": "?confirm=true",
	})
}

func errorJSON(c *fiber.Ctx, status int, key string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": middleware.T(c, key),
	})
}

// listJSON writes {"<name>": rows, "total": n}, adding the empty-state text when n is 0.
func listJSON(c *fiber.Ctx, name string, rows interface{}, n int, emptyKey string) error {
	body := fiber.Map{
		name:    rows,
		"total": n,
	}
	if n == 0 {
		body["empty_message"] = middleware.T(c, emptyKey)
	}
	return c.JSON(body)
}

// queryDate parses a YYYY-MM-DD query value, falling back to def when absent.
func queryDate(c *fiber.Ctx, key string, def models.Date) (models.Date, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, false
	}
	return d, true
}

// bind parses and validates the body into dst. When ok is false the error
// response is already written and err is the result of writing it.
func bind(c *fiber.Ctx, dst interface{}) (ok bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return false, errorJSON(c, fiber.StatusBadRequest, "invalid_input")
	}
	if err := utils.ValidateStruct(dst); err != nil {
		return false, utils.ValidationError(c, middleware.T(c, "validation"), err)
	}
	return true, nil
}

func studentExists(db *gorm.DB, id uint) (bool, error) {
	var n int64
	err := db.Model(&models.Student{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func notFoundOr500(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "not_found")
	}
	logrus.WithError(err).Error("lookup failed")
	return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
}

func queryUint(c *fiber.Ctx, key string) (uint, bool) {
	n, err := strconv.ParseUint(c.Query(key), 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
