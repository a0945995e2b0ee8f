package controllers

import (
	"bimbel_go/middleware"
	"bimbel_go/models"
	"bimbel_go/services"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type AttendanceController struct {
	svc    *services.AttendanceService
	export *services.ExportService
	loc    *time.Location
}

func NewAttendanceController(svc *services.AttendanceService, export *services.ExportService, loc *time.Location) *AttendanceController {
	return &AttendanceController{svc: svc, export: export, loc: loc}
}

type MarkAttendanceRequest struct {
	StudentID uint        `json:"student_id" validate:"required"`
	Date      models.Date `json:"date" validate:"required"`
	Status    string      `json:"status" validate:"required,attendance_status"`
	Notes     string      `json:"notes" validate:"omitempty,max=500"`
}

// GetAttendance returns the roster of active students for ?date= (default today).
func (ac *AttendanceController) GetAttendance(c *fiber.Ctx) error {
	date, ok := queryDate(c, "date", services.Today(ac.loc))
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_input")
	}
	roster, err := ac.svc.Roster(c.UserContext(), date)
	if err != nil {
		logrus.WithError(err).Error("load attendance roster failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	body := fiber.Map{
		"date":       date,
		"attendance": roster,
		"total":      len(roster),
	}
	if len(roster) == 0 {
		body["empty_message"] = middleware.T(c, "no_attendance")
	}
	return c.JSON(body)
}

// GetSummary counts the day's marks per status.
func (ac *AttendanceController) GetSummary(c *fiber.Ctx) error {
	date, ok := queryDate(c, "date", services.Today(ac.loc))
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_input")
	}
	summary, err := ac.svc.DailySummary(c.UserContext(), date)
	if err != nil {
		logrus.WithError(err).Error("attendance summary failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	return c.JSON(fiber.Map{"date": date, "summary": summary})
}

// MarkAttendance upserts one student's status for a day. On failure the
// stored row, if any, is echoed back so the client can revert its cell.
func (ac *AttendanceController) MarkAttendance(c *fiber.Ctx) error {
	var req MarkAttendanceRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	ctx := c.UserContext()
	row, err := ac.svc.Mark(ctx, req.StudentID, req.Date, req.Status, req.Notes)
	if err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrStudentNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, services.ErrInvalidStatus):
			status = fiber.StatusBadRequest
		default:
			logrus.WithError(err).WithField("student_id", req.StudentID).Error("mark attendance failed")
		}
		current, _ := ac.svc.Current(ctx, req.StudentID, req.Date)
		return c.Status(status).JSON(fiber.Map{
			"error":   middleware.T(c, "attendance_failed"),
			"current": current,
		})
	}

	return c.JSON(fiber.Map{
		"message":    middleware.T(c, "attendance_saved"),
		"attendance": row,
	})
}

// ClearAttendance removes the mark for ?student_id=&date=.
func (ac *AttendanceController) ClearAttendance(c *fiber.Ctx) error {
	studentID, ok := queryUint(c, "student_id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_input")
	}
	date, ok := queryDate(c, "date", models.Date{})
	if !ok || date.IsZero() {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_input")
	}

	ctx := c.UserContext()
	if err := ac.svc.Clear(ctx, studentID, date); err != nil {
		logrus.WithError(err).WithField("student_id", studentID).Error("clear attendance failed")
		current, _ := ac.svc.Current(ctx, studentID, date)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   middleware.T(c, "attendance_failed"),
			"current": current,
		})
	}
	return c.JSON(fiber.Map{"message": middleware.T(c, "attendance_cleared")})
}

// ExportAttendance streams ?from=&to= (default: the last 30 days) as xlsx.
func (ac *AttendanceController) ExportAttendance(c *fiber.Ctx) error {
	to, ok := queryDate(c, "to", services.Today(ac.loc))
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_input")
	}
	from, ok := queryDate(c, "from", models.DateOf(to.AddDate(0, 0, -30)))
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_input")
	}
	if to.Before(from.Time) {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_range")
	}

	buf, err := ac.export.AttendanceWorkbook(c.UserContext(), from, to)
	if err != nil {
		logrus.WithError(err).Error("attendance export failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Attachment(fmt.Sprintf("attendance_%s_%s.xlsx", from, to))
	return c.Send(buf.Bytes())
}
