package services

import (
	"bimbel_go/models"
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportService renders grade and attendance workbooks.
type ExportService struct {
	db *gorm.DB
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{db: db}
}

// GradeFilter narrows the grade export.
type GradeFilter struct {
	StudentID uint
	Subject   string
}

// GradesWorkbook exports grades, newest first.
func (s *ExportService) GradesWorkbook(ctx context.Context, filter GradeFilter) (*bytes.Buffer, error) {
	q := s.db.WithContext(ctx).Preload("Student").Order("date desc").Order("id desc")
	if filter.StudentID != 0 {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.Subject != "" {
		q = q.Where("subject = ?", filter.Subject)
	}
	var grades []models.Grade
	if err := q.Find(&grades).Error; err != nil {
		return nil, fmt.Errorf("load grades: %w", err)
	}

	header := []interface{}{"Date", "Student", "Grade Level", "Subject", "Exam Type", "Score"}
	rows := make([][]interface{}, 0, len(grades))
	for _, g := range grades {
		name, level := "", ""
		if g.Student != nil {
			name, level = g.Student.FullName, g.Student.GradeLevel
		}
		rows = append(rows, []interface{}{g.Date.String(), name, level, g.Subject, g.ExamType, g.Score})
	}
	return writeWorkbook("Grades", header, rows)
}

// AttendanceWorkbook exports attendance rows between from and to inclusive,
// plus a per-student summary sheet.
func (s *ExportService) AttendanceWorkbook(ctx context.Context, from, to models.Date) (*bytes.Buffer, error) {
	rows, err := NewAttendanceService(s.db).Between(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}

	header := []interface{}{"Date", "Student", "Grade Level", "Status", "Notes"}
	data := make([][]interface{}, 0, len(rows))

	type tally struct {
		name   string
		counts map[string]int
		total  int
	}
	var order []uint
	perStudent := map[uint]*tally{}

	for _, a := range rows {
		name, level := "", ""
		if a.Student != nil {
			name, level = a.Student.FullName, a.Student.GradeLevel
		}
		data = append(data, []interface{}{a.Date.String(), name, level, a.Status, a.Notes})

		t, ok := perStudent[a.StudentID]
		if !ok {
			t = &tally{name: name, counts: map[string]int{}}
			perStudent[a.StudentID] = t
			order = append(order, a.StudentID)
		}
		t.counts[a.Status]++
		t.total++
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := fillSheet(f, "Attendance", header, data); err != nil {
		return nil, err
	}

	summaryHeader := []interface{}{"Student"}
	for _, st := range models.AttendanceStatuses {
		summaryHeader = append(summaryHeader, st)
	}
	summaryHeader = append(summaryHeader, "Rate (%)")
	var summary [][]interface{}
	for _, id := range order {
		t := perStudent[id]
		row := []interface{}{t.name}
		for _, st := range models.AttendanceStatuses {
			row = append(row, t.counts[st])
		}
		row = append(row, int(roundHalfUp(float64(t.counts[models.AttendancePresent])/float64(t.total)*100)))
		summary = append(summary, row)
	}
	if err := fillSheet(f, "Summary", summaryHeader, summary); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

func writeWorkbook(sheet string, header []interface{}, rows [][]interface{}) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := fillSheet(f, sheet, header, rows); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}

// fillSheet writes header and rows into sheet, renaming the default sheet
// when the workbook is fresh.
func fillSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		if first := f.GetSheetName(0); first == "Sheet1" {
			if err := f.SetSheetName(first, sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}
	return nil
}
