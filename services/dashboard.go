package services

import (
	"bimbel_go/models"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SubjectScore is the mean score of one subject.
type SubjectScore struct {
	Subject string `json:"subject"`
	Score   int    `json:"score"`
}

// SubjectPerformance groups grades by subject in first-appearance order and
// rounds each mean half up.
func SubjectPerformance(grades []models.Grade) []SubjectScore {
	type acc struct {
		total float64
		count int
	}
	var order []string
	sums := make(map[string]*acc)
	for _, g := range grades {
		a, ok := sums[g.Subject]
		if !ok {
			a = &acc{}
			sums[g.Subject] = a
			order = append(order, g.Subject)
		}
		a.total += g.Score
		a.count++
	}

	out := make([]SubjectScore, 0, len(order))
	for _, subject := range order {
		a := sums[subject]
		out = append(out, SubjectScore{Subject: subject, Score: int(roundHalfUp(a.total / float64(a.count)))})
	}
	return out
}

// AttendanceRate is the rounded percentage of Present rows, 0 for none.
func AttendanceRate(records []models.Attendance) int {
	if len(records) == 0 {
		return 0
	}
	present := 0
	for _, r := range records {
		if r.Status == models.AttendancePresent {
			present++
		}
	}
	return int(roundHalfUp(float64(present) / float64(len(records)) * 100))
}

// NextClass picks today's earliest class for the grade level (and branch when
// set) starting strictly after now. nil means nothing is left today.
func NextClass(schedules []models.Schedule, now time.Time, gradeLevel, branch string) *models.Schedule {
	today := models.WeekdayName(now.Weekday())
	clock := models.TodFrom(now)

	var next *models.Schedule
	for i := range schedules {
		s := &schedules[i]
		if s.DayOfWeek != today || s.GradeLevel != gradeLevel {
			continue
		}
		if branch != "" && s.Branch != "" && !strings.EqualFold(s.Branch, branch) {
			continue
		}
		if !s.StartTime.After(clock) {
			continue
		}
		if next == nil || s.StartTime.Before(next.StartTime) {
			next = s
		}
	}
	if next == nil {
		return nil
	}
	c := *next
	return &c
}

// SortSchedules orders rows Monday first, then by start time.
func SortSchedules(rows []models.Schedule) {
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := models.WeekdayIndex(rows[i].DayOfWeek), models.WeekdayIndex(rows[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		return rows[i].StartTime.Before(rows[j].StartTime)
	})
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// StudentDashboard is the portal overview for one student.
type StudentDashboard struct {
	Student            models.Student    `json:"student"`
	SubjectPerformance []SubjectScore    `json:"subject_performance"`
	AttendanceRate     int               `json:"attendance_rate"`
	NextClass          *models.Schedule  `json:"next_class"`
	Schedules          []models.Schedule `json:"schedules"`
	RecentGrades       []models.Grade    `json:"recent_grades"`
	GradeCount         int               `json:"grade_count"`
	AttendanceCount    int               `json:"attendance_count"`
}

// AdminStats backs the admin dashboard cards and chart.
type AdminStats struct {
	TotalStudents      int64          `json:"total_students"`
	AttendanceToday    int64          `json:"attendance_today"`
	ActiveClasses      int64          `json:"active_classes"`
	AverageScore       float64        `json:"avg_score"`
	SubjectPerformance []SubjectScore `json:"performance"`
}

// DashboardService loads the rows behind both dashboards.
type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// SchedulesFor returns the weekly schedule of a grade level, narrowed to
// branch when one is set.
func (s *DashboardService) SchedulesFor(ctx context.Context, gradeLevel, branch string) ([]models.Schedule, error) {
	q := s.db.WithContext(ctx).Where("grade_level = ?", gradeLevel)
	if branch != "" {
		q = q.Where("branch = ? OR branch = '' OR branch IS NULL", branch)
	}
	var rows []models.Schedule
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	SortSchedules(rows)
	return rows, nil
}

// GradesFor returns a student's grades, newest first.
func (s *DashboardService) GradesFor(ctx context.Context, studentID uint) ([]models.Grade, error) {
	var rows []models.Grade
	err := s.db.WithContext(ctx).Where("student_id = ?", studentID).
		Order("date desc").Order("id desc").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load grades: %w", err)
	}
	return rows, nil
}

// ForStudent assembles the portal overview at now.
func (s *DashboardService) ForStudent(ctx context.Context, student models.Student, now time.Time) (*StudentDashboard, error) {
	grades, err := s.GradesFor(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	var attendance []models.Attendance
	if err := s.db.WithContext(ctx).Where("student_id = ?", student.ID).Find(&attendance).Error; err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}

	schedules, err := s.SchedulesFor(ctx, student.GradeLevel, student.Branch)
	if err != nil {
		return nil, err
	}

	// nilai dihitung dari yang terlama supaya urutan mapel stabil
	chrono := make([]models.Grade, len(grades))
	for i := range grades {
		chrono[len(grades)-1-i] = grades[i]
	}

	recent := grades
	if len(recent) > 5 {
		recent = recent[:5]
	}

	return &StudentDashboard{
		Student:            student,
		SubjectPerformance: SubjectPerformance(chrono),
		AttendanceRate:     AttendanceRate(attendance),
		NextClass:          NextClass(schedules, now, student.GradeLevel, student.Branch),
		Schedules:          schedules,
		RecentGrades:       recent,
		GradeCount:         len(grades),
		AttendanceCount:    len(attendance),
	}, nil
}

// AdminStats computes the admin dashboard numbers for the given day.
func (s *DashboardService) AdminStats(ctx context.Context, today models.Date) (*AdminStats, error) {
	db := s.db.WithContext(ctx)
	stats := &AdminStats{SubjectPerformance: []SubjectScore{}}

	if err := db.Model(&models.Student{}).Where("status = ?", models.StudentStatusActive).Count(&stats.TotalStudents).Error; err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	if err := db.Model(&models.Attendance{}).
		Where("date = ? AND status = ?", today, models.AttendancePresent).
		Count(&stats.AttendanceToday).Error; err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}
	if err := db.Model(&models.Schedule{}).Count(&stats.ActiveClasses).Error; err != nil {
		return nil, fmt.Errorf("count schedules: %w", err)
	}

	var grades []models.Grade
	if err := db.Select("id", "subject", "score").Order("id asc").Find(&grades).Error; err != nil {
		return nil, fmt.Errorf("load grades: %w", err)
	}
	if len(grades) > 0 {
		total := 0.0
		for _, g := range grades {
			total += g.Score
		}
		stats.AverageScore = roundHalfUp(total/float64(len(grades))*10) / 10
		stats.SubjectPerformance = SubjectPerformance(grades)
	}
	return stats, nil
}

// ActiveStudentCount backs the public landing page counter.
func (s *DashboardService) ActiveStudentCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Student{}).
		Where("status = ?", models.StudentStatusActive).Count(&n).Error
	return n, err
}
