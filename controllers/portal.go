package controllers

import (
	"bimbel_go/middleware"
	"bimbel_go/models"
	"bimbel_go/services"
	"bimbel_go/services/session"
	"bimbel_go/storage"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PortalController serves the signed-in student's own data. Every handler
// runs behind RequireStudent.
type PortalController struct {
	db          *gorm.DB
	dashboard   *services.DashboardService
	attendance  *services.AttendanceService
	files       storage.FileStorage
	sessions    *session.Manager
	loc         *time.Location
	adminPhone  string
	countryCode string
}

type PortalDeps struct {
	DB          *gorm.DB
	Dashboard   *services.DashboardService
	Attendance  *services.AttendanceService
	Files       storage.FileStorage
	Sessions    *session.Manager
	Location    *time.Location
	AdminPhone  string
	CountryCode string
}

func NewPortalController(d PortalDeps) *PortalController {
	return &PortalController{
		db:          d.DB,
		dashboard:   d.Dashboard,
		attendance:  d.Attendance,
		files:       d.Files,
		sessions:    d.Sessions,
		loc:         d.Location,
		adminPhone:  d.AdminPhone,
		countryCode: d.CountryCode,
	}
}

func (pc *PortalController) student(c *fiber.Ctx) (*models.Student, error) {
	s := middleware.CurrentStudent(c)
	if s == nil {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":    middleware.T(c, "unauthorized"),
			"redirect": middleware.LoginPath,
		})
	}
	return s, nil
}

func (pc *PortalController) Me(c *fiber.Ctx) error {
	s, err := pc.student(c)
	if s == nil {
		return err
	}
	return c.JSON(fiber.Map{"student": s})
}

// Dashboard returns grades, attendance rate and today's next class.
func (pc *PortalController) Dashboard(c *fiber.Ctx) error {
	s, err := pc.student(c)
	if s == nil {
		return err
	}
	now := time.Now()
	if pc.loc != nil {
		now = now.In(pc.loc)
	}
	dash, err := pc.dashboard.ForStudent(c.UserContext(), *s, now)
	if err != nil {
		logrus.WithError(err).WithField("student_id", s.ID).Error("student dashboard failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	body := fiber.Map{"dashboard": dash}
	if dash.NextClass == nil {
		body["next_class_message"] = middleware.T(c, "no_upcoming")
	}
	return c.JSON(body)
}

func (pc *PortalController) Grades(c *fiber.Ctx) error {
	s, err := pc.student(c)
	if s == nil {
		return err
	}
	grades, err := pc.dashboard.GradesFor(c.UserContext(), s.ID)
	if err != nil {
		logrus.WithError(err).WithField("student_id", s.ID).Error("student grades failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	return listJSON(c, "grades", grades, len(grades), "no_grades")
}

func (pc *PortalController) Attendance(c *fiber.Ctx) error {
	s, err := pc.student(c)
	if s == nil {
		return err
	}
	rows, err := pc.attendance.ForStudent(c.UserContext(), s.ID)
	if err != nil {
		logrus.WithError(err).WithField("student_id", s.ID).Error("student attendance failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	body := fiber.Map{
		"attendance": rows,
		"total":      len(rows),
		"rate":       services.AttendanceRate(rows),
	}
	if len(rows) == 0 {
		body["empty_message"] = middleware.T(c, "no_attendance")
	}
	return c.JSON(body)
}

// Schedules returns the weekly timetable for the student's grade level and branch.
func (pc *PortalController) Schedules(c *fiber.Ctx) error {
	s, err := pc.student(c)
	if s == nil {
		return err
	}
	rows, err := pc.dashboard.SchedulesFor(c.UserContext(), s.GradeLevel, s.Branch)
	if err != nil {
		logrus.WithError(err).WithField("student_id", s.ID).Error("student schedules failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	return listJSON(c, "schedules", rows, len(rows), "no_schedules")
}

// UploadPhoto replaces the student's profile photo (multipart field "photo").
func (pc *PortalController) UploadPhoto(c *fiber.Ctx) error {
	s, err := pc.student(c)
	if s == nil {
		return err
	}
	if pc.files == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "upload_failed")
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "no_file")
	}

	ctx := c.UserContext()
	url, err := pc.files.UploadFile(ctx, fh, "avatars", s.ID)
	if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrFileTypeRejected) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   middleware.T(c, "invalid_file"),
			"details": err.Error(),
		})
	}
	if err != nil {
		logrus.WithError(err).WithField("student_id", s.ID).Error("photo upload failed")
		return errorJSON(c, fiber.StatusInternalServerError, "upload_failed")
	}

	old := s.PhotoURL
	if err := pc.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", s.ID).Update("photo_url", url).Error; err != nil {
		logrus.WithError(err).WithField("student_id", s.ID).Error("photo url update failed")
		pc.deleteLater(url)
		return errorJSON(c, fiber.StatusInternalServerError, "upload_failed")
	}
	if old != "" && old != url {
		pc.deleteLater(old)
	}

	// re-resolve so the stored record carries the new URL
	r, err := pc.sessions.Resolve(ctx, middleware.ClientID(c))
	if err != nil {
		logrus.WithError(err).Debug("session refresh after upload interrupted")
	}
	return c.JSON(fiber.Map{
		"message":   middleware.T(c, "upload_success"),
		"photo_url": url,
		"session":   r.State(),
	})
}

// ContactAdmin returns the admin WhatsApp link for the portal.
func (pc *PortalController) ContactAdmin(c *fiber.Ctx) error {
	return adminContact(c, pc.adminPhone, pc.countryCode, c.Query("message"))
}

func (pc *PortalController) deleteLater(url string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := pc.files.DeleteFile(ctx, url); err != nil {
			logrus.WithError(err).WithField("url", url).Warn("failed to delete photo")
		}
	}()
}
