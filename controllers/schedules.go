package controllers

import (
	"bimbel_go/middleware"
	"bimbel_go/models"
	"bimbel_go/services"
	"bimbel_go/utils"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ScheduleController struct {
	db *gorm.DB
}

func NewScheduleController(db *gorm.DB) *ScheduleController {
	return &ScheduleController{db: db}
}

// ScheduleRequest is the create/update body. Times are "HH:MM" or "HH:MM:SS".
type ScheduleRequest struct {
	Subject     string     `json:"subject" validate:"required,max=100"`
	TeacherName string     `json:"teacher_name" validate:"required,max=200"`
	DayOfWeek   string     `json:"day_of_week" validate:"required,weekday"`
	StartTime   models.Tod `json:"start_time"`
	EndTime     models.Tod `json:"end_time"`
	Room        string     `json:"room" validate:"omitempty,max=100"`
	Branch      string     `json:"branch" validate:"omitempty,max=100"`
	GradeLevel  string     `json:"grade_level" validate:"required,max=50"`
}

func (r ScheduleRequest) apply(s *models.Schedule) {
	s.Subject = utils.SanitizeString(r.Subject)
	s.TeacherName = utils.SanitizeString(r.TeacherName)
	s.DayOfWeek = r.DayOfWeek
	s.StartTime = r.StartTime
	s.EndTime = r.EndTime
	s.Room = strings.TrimSpace(r.Room)
	s.Branch = strings.TrimSpace(r.Branch)
	s.GradeLevel = strings.TrimSpace(r.GradeLevel)
}

// GetSchedules lists the weekly timetable, Monday first then by start time.
func (sc *ScheduleController) GetSchedules(c *fiber.Ctx) error {
	query := sc.db.WithContext(c.UserContext())
	if day := c.Query("day_of_week"); day != "" {
		query = query.Where("day_of_week = ?", day)
	}
	if level := c.Query("grade_level"); level != "" {
		query = query.Where("grade_level = ?", level)
	}
	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ? OR branch = ''", branch)
	}

	var schedules []models.Schedule
	if err := query.Find(&schedules).Error; err != nil {
		logrus.WithError(err).Error("list schedules failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	services.SortSchedules(schedules)
	return listJSON(c, "schedules", schedules, len(schedules), "no_schedules")
}

func (sc *ScheduleController) GetSchedule(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	var schedule models.Schedule
	if err := sc.db.WithContext(c.UserContext()).First(&schedule, id).Error; err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(fiber.Map{"schedule": schedule})
}

func (sc *ScheduleController) CreateSchedule(c *fiber.Ctx) error {
	var req ScheduleRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}
	if !req.EndTime.After(req.StartTime) {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_time")
	}

	var schedule models.Schedule
	req.apply(&schedule)
	if err := sc.db.WithContext(c.UserContext()).Create(&schedule).Error; err != nil {
		logrus.WithError(err).Error("create schedule failed")
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  middleware.T(c, "save_success"),
		"schedule": schedule,
	})
}

func (sc *ScheduleController) UpdateSchedule(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	var req ScheduleRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}
	if !req.EndTime.After(req.StartTime) {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_time")
	}

	ctx := c.UserContext()
	var schedule models.Schedule
	if err := sc.db.WithContext(ctx).First(&schedule, id).Error; err != nil {
		return notFoundOr500(c, err)
	}
	req.apply(&schedule)
	if err := sc.db.WithContext(ctx).Model(&schedule).Select("*").Omit("created_at").Updates(&schedule).Error; err != nil {
		logrus.WithError(err).WithField("schedule_id", id).Error("update schedule failed")
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	}
	return c.JSON(fiber.Map{
		"message":  middleware.T(c, "update_success"),
		"schedule": schedule,
	})
}

func (sc *ScheduleController) DeleteSchedule(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	if !deleteConfirmed(c) {
		return confirmRequired(c)
	}
	res := sc.db.WithContext(c.UserContext()).Unscoped().Delete(&models.Schedule{}, id)
	if res.Error != nil {
		logrus.WithError(res.Error).WithField("schedule_id", id).Error("delete schedule failed")
		return errorJSON(c, fiber.StatusInternalServerError, "delete_failed")
	}
	if res.RowsAffected == 0 {
		return errorJSON(c, fiber.StatusNotFound, "not_found")
	}
	return c.JSON(fiber.Map{"message": middleware.T(c, "delete_success")})
}
