package controllers

import (
	"bimbel_go/middleware"
	"bimbel_go/models"
	"bimbel_go/services"
	"bimbel_go/utils"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type GradeController struct {
	db       *gorm.DB
	export   *services.ExportService
	importer *services.GradeImporter
}

func NewGradeController(db *gorm.DB, export *services.ExportService, importer *services.GradeImporter) *GradeController {
	return &GradeController{db: db, export: export, importer: importer}
}

type GradeRequest struct {
	StudentID uint        `json:"student_id" validate:"required"`
	Subject   string      `json:"subject" validate:"required,max=100"`
	ExamType  string      `json:"exam_type" validate:"required,max=100"`
	Score     float64     `json:"score" validate:"gte=0,lte=100"`
	Date      models.Date `json:"date" validate:"required"`
}

func (r GradeRequest) apply(g *models.Grade) {
	g.StudentID = r.StudentID
	g.Subject = utils.SanitizeString(r.Subject)
	g.ExamType = utils.SanitizeString(r.ExamType)
	g.Score = r.Score
	g.Date = r.Date
}

// GetGrades lists grades, newest first, with their student.
func (gc *GradeController) GetGrades(c *fiber.Ctx) error {
	query := gc.db.WithContext(c.UserContext()).Preload("Student")
	if sid := c.QueryInt("student_id"); sid > 0 {
		query = query.Where("student_id = ?", sid)
	}
	if subject := c.Query("subject"); subject != "" {
		query = query.Where("subject = ?", subject)
	}

	var grades []models.Grade
	if err := query.Order("date desc").Order("id desc").Find(&grades).Error; err != nil {
		logrus.WithError(err).Error("list grades failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	return listJSON(c, "grades", grades, len(grades), "no_grades")
}

func (gc *GradeController) GetGrade(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	var grade models.Grade
	if err := gc.db.WithContext(c.UserContext()).Preload("Student").First(&grade, id).Error; err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(fiber.Map{"grade": grade})
}

func (gc *GradeController) CreateGrade(c *fiber.Ctx) error {
	var req GradeRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}
	var grade models.Grade
	req.apply(&grade)

	ctx := c.UserContext()
	if ok, err := studentExists(gc.db.WithContext(ctx), grade.StudentID); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	} else if !ok {
		return errorJSON(c, fiber.StatusNotFound, "student_not_found")
	}
	if err := gc.db.WithContext(ctx).Create(&grade).Error; err != nil {
		logrus.WithError(err).Error("create grade failed")
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	}
	gc.db.WithContext(ctx).Preload("Student").First(&grade, grade.ID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": middleware.T(c, "save_success"),
		"grade":   grade,
	})
}

func (gc *GradeController) UpdateGrade(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	var req GradeRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	ctx := c.UserContext()
	var grade models.Grade
	if err := gc.db.WithContext(ctx).First(&grade, id).Error; err != nil {
		return notFoundOr500(c, err)
	}
	req.apply(&grade)
	if ok, err := studentExists(gc.db.WithContext(ctx), grade.StudentID); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	} else if !ok {
		return errorJSON(c, fiber.StatusNotFound, "student_not_found")
	}

	if err := gc.db.WithContext(ctx).Model(&grade).Select("student_id", "subject", "exam_type", "score", "date").Updates(&grade).Error; err != nil {
		logrus.WithError(err).WithField("grade_id", id).Error("update grade failed")
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	}
	gc.db.WithContext(ctx).Preload("Student").First(&grade, grade.ID)

	return c.JSON(fiber.Map{
		"message": middleware.T(c, "update_success"),
		"grade":   grade,
	})
}

func (gc *GradeController) DeleteGrade(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return badID(c)
	}
	if !deleteConfirmed(c) {
		return confirmRequired(c)
	}
	res := gc.db.WithContext(c.UserContext()).Unscoped().Delete(&models.Grade{}, id)
	if res.Error != nil {
		logrus.WithError(res.Error).WithField("grade_id", id).Error("delete grade failed")
		return errorJSON(c, fiber.StatusInternalServerError, "delete_failed")
	}
	if res.RowsAffected == 0 {
		return errorJSON(c, fiber.StatusNotFound, "not_found")
	}
	return c.JSON(fiber.Map{"message": middleware.T(c, "delete_success")})
}

// ExportGrades streams the filtered grades as an xlsx workbook.
func (gc *GradeController) ExportGrades(c *fiber.Ctx) error {
	filter := services.GradeFilter{Subject: c.Query("subject")}
	if sid := c.QueryInt("student_id"); sid > 0 {
		filter.StudentID = uint(sid)
	}
	buf, err := gc.export.GradesWorkbook(c.UserContext(), filter)
	if err != nil {
		logrus.WithError(err).Error("grade export failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Attachment(fmt.Sprintf("grades_%s.xlsx", time.Now().Format("20060102")))
	return c.Send(buf.Bytes())
}

// ImportGrades loads a csv/xlsx upload (form field "file").
func (gc *GradeController) ImportGrades(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "no_file")
	}
	f, err := fh.Open()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_file")
	}
	defer f.Close()

	rows, err := services.ReadRows(fh.Filename, f)
	if errors.Is(err, services.ErrUnsupportedImport) {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_file")
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   middleware.T(c, "invalid_file"),
			"details": err.Error(),
		})
	}

	res, err := gc.importer.Import(c.UserContext(), fh.Filename, rows)
	if err != nil {
		if errors.Is(err, services.ErrInvalidImport) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   middleware.T(c, "invalid_file"),
				"details": err.Error(),
			})
		}
		logrus.WithError(err).Error("grade import failed")
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	}
	return c.JSON(fiber.Map{
		"message": middleware.T(c, "import_success"),
		"result":  res,
	})
}
