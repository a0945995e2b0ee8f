package controllers

import (
	"bimbel_go/middleware"
	"bimbel_go/models"
	"bimbel_go/storage"
	"bimbel_go/utils"
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type StudentController struct {
	db          *gorm.DB
	files       storage.FileStorage
	countryCode string
}

func NewStudentController(db *gorm.DB, files storage.FileStorage, countryCode string) *StudentController {
	return &StudentController{db: db, files: files, countryCode: countryCode}
}

// StudentRequest is the create/update body.
type StudentRequest struct {
	FullName    string       `json:"full_name" validate:"required,max=200"`
	Email       string       `json:"email" validate:"omitempty,email,max=255"`
	Phone       string       `json:"phone" validate:"omitempty,max=20"`
	DateOfBirth *models.Date `json:"date_of_birth"`
	ParentName  string       `json:"parent_name" validate:"omitempty,max=200"`
	ParentPhone string       `json:"parent_phone" validate:"omitempty,max=20"`
	Address     string       `json:"address" validate:"omitempty,max=500"`
	GradeLevel  string       `json:"grade_level" validate:"required,max=50"`
	Branch      string       `json:"branch" validate:"omitempty,max=100"`
	Status      string       `json:"status" validate:"omitempty,student_status"`
}

func (r StudentRequest) apply(s *models.Student) {
	s.FullName = utils.SanitizeString(r.FullName)
	s.Email = nil
	if email := utils.NormalizeEmail(r.Email); email != "" {
		s.Email = &email
	}
	s.Phone = strings.TrimSpace(r.Phone)
	s.DateOfBirth = nil
	if r.DateOfBirth != nil && !r.DateOfBirth.IsZero() {
		d := *r.DateOfBirth
		s.DateOfBirth = &d
	}
	s.ParentName = utils.SanitizeString(r.ParentName)
	s.ParentPhone = strings.TrimSpace(r.ParentPhone)
	s.Address = strings.TrimSpace(r.Address)
	s.GradeLevel = strings.TrimSpace(r.GradeLevel)
	s.Branch = strings.TrimSpace(r.Branch)
	// an omitted status keeps the current one
	if r.Status != "" {
		s.Status = r.Status
	} else if s.Status == "" {
		s.Status = models.StudentStatusActive
	}
}

// loginable rejects an email without a date of birth, since the portal
// login needs both.
func (r StudentRequest) loginable(c *fiber.Ctx) (ok bool, err error) {
	if strings.TrimSpace(r.Email) == "" || (r.DateOfBirth != nil && !r.DateOfBirth.IsZero()) {
		return true, nil
	}
	return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  middleware.T(c, "validation"),
		"errors": fiber.Map{"date_of_birth": "required_with"},
	})
}

// GetStudents lists students, newest first.
func (sc *StudentController) GetStudents(c *fiber.Ctx) error {
	query := sc.db.WithContext(c.UserContext()).Model(&models.Student{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if branch := c.Query("branch"); branch != "" {
		query = query.Where("branch = ?", branch)
	}
	if level := c.Query("grade_level"); level != "" {
		query = query.Where("grade_level = ?", level)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var students []models.Student
	if err := query.Order("created_at desc").Order("id desc").Find(&students).Error; err != nil {
		logrus.WithError(err).Error("list students failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	return listJSON(c, "students", students, len(students), "no_students")
}

// GetStudent returns a specific student by ID
func (sc *StudentController) GetStudent(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	var student models.Student
	if err := sc.db.WithContext(c.UserContext()).First(&student, id).Error; err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(fiber.Map{"student": student})
}

func (sc *StudentController) CreateStudent(c *fiber.Ctx) error {
	var req StudentRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}
	if ok, err := req.loginable(c); !ok {
		return err
	}

	var student models.Student
	req.apply(&student)
	ctx := c.UserContext()
	if taken, err := sc.emailTaken(ctx, student.Email, 0); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	} else if taken {
		return errorJSON(c, fiber.StatusConflict, "email_taken")
	}

	if err := sc.db.WithContext(ctx).Create(&student).Error; err != nil {
		logrus.WithError(err).Error("create student failed")
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": middleware.T(c, "save_success"),
		"student": student,
	})
}

func (sc *StudentController) UpdateStudent(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	var req StudentRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}
	if ok, err := req.loginable(c); !ok {
		return err
	}

	ctx := c.UserContext()
	var student models.Student
	if err := sc.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return notFoundOr500(c, err)
	}
	req.apply(&student)
	if taken, err := sc.emailTaken(ctx, student.Email, student.ID); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	} else if taken {
		return errorJSON(c, fiber.StatusConflict, "email_taken")
	}

	// Select("*") so cleared fields and the Inactive status are written too
	if err := sc.db.WithContext(ctx).Model(&student).Select("*").Omit("created_at", "photo_url").Updates(&student).Error; err != nil {
		logrus.WithError(err).WithField("student_id", id).Error("update student failed")
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	}
	return c.JSON(fiber.Map{
		"message": middleware.T(c, "update_success"),
		"student": student,
	})
}

// DeleteStudent removes the student together with their grades and attendance.
func (sc *StudentController) DeleteStudent(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	if !deleteConfirmed(c) {
		return confirmRequired(c)
	}

	ctx := c.UserContext()
	var student models.Student
	if err := sc.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return notFoundOr500(c, err)
	}

	err := sc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("student_id = ?", id).Delete(&models.Grade{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("student_id = ?", id).Delete(&models.Attendance{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Student{}, id).Error
	})
	if err != nil {
		logrus.WithError(err).WithField("student_id", id).Error("delete student failed")
		return errorJSON(c, fiber.StatusInternalServerError, "delete_failed")
	}

	if student.PhotoURL != "" && sc.files != nil {
		go func(url string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := sc.files.DeleteFile(ctx, url); err != nil {
				logrus.WithError(err).Warn("failed to delete student photo")
			}
		}(student.PhotoURL)
	}

	return c.JSON(fiber.Map{"message": middleware.T(c, "delete_success")})
}

// GetWhatsAppLink builds a wa.me link to the student (?to=student) or their parent.
func (sc *StudentController) GetWhatsAppLink(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	var student models.Student
	if err := sc.db.WithContext(c.UserContext()).First(&student, id).Error; err != nil {
		return notFoundOr500(c, err)
	}

	phone := student.ParentPhone
	if c.Query("to") == "student" {
		phone = student.Phone
	}
	link, err := utils.WhatsAppLink(phone, sc.countryCode, c.Query("message"))
	if err != nil {
		return errorJSON(c, fiber.StatusUnprocessableEntity, "invalid_phone")
	}
	return c.JSON(fiber.Map{
		"url":    link,
		"number": utils.FormatWhatsAppNumber(phone, sc.countryCode),
	})
}

func (sc *StudentController) emailTaken(ctx context.Context, email *string, exceptID uint) (bool, error) {
	if email == nil {
		return false, nil
	}
	var n int64
	err := sc.db.WithContext(ctx).Model(&models.Student{}).
		Where("email = ? AND id <> ?", *email, exceptID).Count(&n).Error
	return n > 0, err
}
