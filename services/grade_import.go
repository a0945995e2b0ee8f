package services

import (
	"bimbel_go/models"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var (
	ErrUnsupportedImport = errors.New("unsupported file type (csv,xlsx)")
	ErrInvalidImport     = errors.New("invalid import file")
)

// ImportResult summarizes a grade import.
type ImportResult struct {
	FileName string   `json:"file_name"`
	DataRows int      `json:"data_rows"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// GradeImporter loads grade rows from CSV or XLSX sheets. A row matching an
// existing (student, subject, exam type, date) grade updates its score.
type GradeImporter struct {
	db *gorm.DB
}

func NewGradeImporter(db *gorm.DB) *GradeImporter {
	return &GradeImporter{db: db}
}

// ReadRows parses the upload by extension.
func ReadRows(filename string, r io.Reader) ([][]string, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".csv"):
		return readCSVRows(r)
	case strings.HasSuffix(name, ".xlsx"):
		return readXLSXRows(r)
	}
	return nil, ErrUnsupportedImport
}

// Import writes rows (header first) in one transaction.
func (gi *GradeImporter) Import(ctx context.Context, filename string, rows [][]string) (*ImportResult, error) {
	res := &ImportResult{FileName: filename, Errors: []string{}}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidImport)
	}
	res.DataRows = len(rows) - 1

	col := mapHeaderIndexes(rows[0])
	for _, required := range []string{"subject", "exam type", "score", "date"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %s", ErrInvalidImport, required)
		}
	}
	_, hasEmail := col["email"]
	_, hasID := col["student id"]
	if !hasEmail && !hasID {
		return nil, fmt.Errorf("%w: missing column email or student id", ErrInvalidImport)
	}

	err := gi.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		emails := map[string]uint{}
		for i := 1; i < len(rows); i++ {
			r := rows[i]
			get := func(key string) string {
				if idx, ok := col[key]; ok && idx < len(r) {
					return strings.TrimSpace(r[idx])
				}
				return ""
			}
			if strings.Join(r, "") == "" {
				res.Skipped++
				continue
			}

			studentID, err := resolveStudentID(tx, emails, get("student id"), get("email"))
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, err))
				res.Skipped++
				continue
			}

			score, err := strconv.ParseFloat(strings.ReplaceAll(get("score"), ",", "."), 64)
			if err != nil || score < 0 || score > 100 {
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: invalid score %q", i+1, get("score")))
				res.Skipped++
				continue
			}
			date, ok := parseImportDate(get("date"))
			if !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: invalid date %q", i+1, get("date")))
				res.Skipped++
				continue
			}
			subject, examType := get("subject"), get("exam type")
			if subject == "" || examType == "" {
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: subject and exam type are required", i+1))
				res.Skipped++
				continue
			}

			var existing []models.Grade
			if err := tx.Where("student_id = ? AND subject = ? AND exam_type = ? AND date = ?", studentID, subject, examType, date).
				Limit(1).Find(&existing).Error; err != nil {
				return err
			}
			if len(existing) > 0 {
				if err := tx.Model(&existing[0]).Update("score", score).Error; err != nil {
					return err
				}
				res.Updated++
				continue
			}

			g := models.Grade{StudentID: studentID, Subject: subject, ExamType: examType, Score: score, Date: date}
			if err := tx.Create(&g).Error; err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, err))
				res.Skipped++
				continue
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func resolveStudentID(tx *gorm.DB, cache map[string]uint, rawID, email string) (uint, error) {
	if rawID != "" {
		id, err := strconv.ParseUint(rawID, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid student id %q", rawID)
		}
		var n int64
		if err := tx.Model(&models.Student{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, fmt.Errorf("student %d not found", id)
		}
		return uint(id), nil
	}
	email = strings.ToLower(email)
	if email == "" {
		return 0, errors.New("student email is required")
	}
	if id, ok := cache[email]; ok {
		return id, nil
	}
	var s models.Student
	if err := tx.Select("id").Where("email = ?", email).First(&s).Error; err != nil {
		return 0, fmt.Errorf("student %s not found", email)
	}
	cache[email] = s.ID
	return s.ID, nil
}

func readCSVRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSXRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

// mapHeaderIndexes keys columns by lowercased, trimmed header text.
func mapHeaderIndexes(header []string) map[string]int {
	m := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, "_", " ")
		m[key] = i
	}
	return m
}

func parseImportDate(s string) (models.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}, false
	}
	layouts := []string{models.DateLayout, "02/01/2006", "2/1/2006", "02-01-2006", time.RFC3339}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return models.DateOf(t), true
		}
	}
	// excel serial day numbers
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		if t, err := excelize.ExcelDateToTime(n, false); err == nil {
			return models.DateOf(t), true
		}
	}
	return models.Date{}, false
}
