package services

import (
	"bimbel_go/models"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrInvalidStatus   = errors.New("invalid attendance status")
)

// AttendanceService keeps one attendance row per student per day.
type AttendanceService struct {
	db *gorm.DB
}

func NewAttendanceService(db *gorm.DB) *AttendanceService {
	return &AttendanceService{db: db}
}

// RosterEntry is an active student with their mark for one day.
type RosterEntry struct {
	Student    models.Student     `json:"student"`
	Attendance *models.Attendance `json:"attendance"`
	Status     *string            `json:"status"`
}

// Mark sets the status for (studentID, date), updating the existing row or
// inserting a new one.
func (s *AttendanceService) Mark(ctx context.Context, studentID uint, date models.Date, status, notes string) (*models.Attendance, error) {
	if !isAttendanceStatus(status) {
		return nil, ErrInvalidStatus
	}
	db := s.db.WithContext(ctx)

	var n int64
	if err := db.Model(&models.Student{}).Where("id = ?", studentID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check student: %w", err)
	}
	if n == 0 {
		return nil, ErrStudentNotFound
	}

	row := models.Attendance{StudentID: studentID, Date: date, Status: status, Notes: notes}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "notes", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}

	current, err := s.Current(ctx, studentID, date)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("attendance for student %d on %s vanished after upsert", studentID, date)
	}
	return current, nil
}

// Clear removes the row for (studentID, date). Clearing an unmarked day is not an error.
func (s *AttendanceService) Clear(ctx context.Context, studentID uint, date models.Date) error {
	err := s.db.WithContext(ctx).Unscoped().
		Where("student_id = ? AND date = ?", studentID, date).
		Delete(&models.Attendance{}).Error
	if err != nil {
		return fmt.Errorf("clear attendance: %w", err)
	}
	return nil
}

// Current returns the stored row for (studentID, date), or nil.
func (s *AttendanceService) Current(ctx context.Context, studentID uint, date models.Date) (*models.Attendance, error) {
	var rows []models.Attendance
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND date = ?", studentID, date).
		Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Roster lists active students by name, each with their mark for date.
func (s *AttendanceService) Roster(ctx context.Context, date models.Date) ([]RosterEntry, error) {
	db := s.db.WithContext(ctx)

	var students []models.Student
	if err := db.Where("status = ?", models.StudentStatusActive).Order("full_name asc").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}

	var marks []models.Attendance
	if err := db.Where("date = ?", date).Find(&marks).Error; err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	byStudent := make(map[uint]models.Attendance, len(marks))
	for _, m := range marks {
		byStudent[m.StudentID] = m
	}

	out := make([]RosterEntry, 0, len(students))
	for _, st := range students {
		entry := RosterEntry{Student: st}
		if m, ok := byStudent[st.ID]; ok {
			m := m
			entry.Attendance = &m
			entry.Status = &m.Status
		}
		out = append(out, entry)
	}
	return out, nil
}

// ForStudent returns a student's attendance history, newest first.
func (s *AttendanceService) ForStudent(ctx context.Context, studentID uint) ([]models.Attendance, error) {
	var rows []models.Attendance
	err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("date desc").Find(&rows).Error
	return rows, err
}

// Between returns rows with from <= date <= to, preloading the student.
func (s *AttendanceService) Between(ctx context.Context, from, to models.Date) ([]models.Attendance, error) {
	var rows []models.Attendance
	err := s.db.WithContext(ctx).
		Preload("Student").
		Where("date >= ? AND date <= ?", from, to).
		Order("date asc").Order("student_id asc").
		Find(&rows).Error
	return rows, err
}

// DailySummary counts marks per status for date; "Unmarked" counts active
// students with no row.
func (s *AttendanceService) DailySummary(ctx context.Context, date models.Date) (map[string]int, error) {
	roster, err := s.Roster(ctx, date)
	if err != nil {
		return nil, err
	}
	summary := map[string]int{"Unmarked": 0}
	for _, st := range models.AttendanceStatuses {
		summary[st] = 0
	}
	for _, e := range roster {
		if e.Status == nil {
			summary["Unmarked"]++
			continue
		}
		summary[*e.Status]++
	}
	return summary, nil
}

// Today is the current calendar day in loc.
func Today(loc *time.Location) models.Date {
	if loc == nil {
		loc = time.Local
	}
	return models.DateOf(time.Now().In(loc))
}

func isAttendanceStatus(status string) bool {
	for _, s := range models.AttendanceStatuses {
		if s == status {
			return true
		}
	}
	return false
}
