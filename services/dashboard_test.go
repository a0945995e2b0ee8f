package services

import (
	"bimbel_go/models"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectPerformance(t *testing.T) {
	grades := []models.Grade{
		{Subject: "Math", Score: 80},
		{Subject: "Art", Score: 70},
		{Subject: "Math", Score: 90},
	}
	assert.Equal(t, []SubjectScore{{Subject: "Math", Score: 85}, {Subject: "Art", Score: 70}}, SubjectPerformance(grades))

	half := []models.Grade{{Subject: "Fisika", Score: 70}, {Subject: "Fisika", Score: 71}}
	assert.Equal(t, 71, SubjectPerformance(half)[0].Score)

	assert.Empty(t, SubjectPerformance(nil))
}

func TestAttendanceRate(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     int
	}{
		{"no rows", nil, 0},
		{"all present", []string{"Present", "Present"}, 100},
		{"two of three", []string{"Present", "Sick", "Present"}, 67},
		{"none present", []string{"Alpha", "Permission"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []models.Attendance
			for _, s := range tt.statuses {
				rows = append(rows, models.Attendance{Status: s})
			}
			assert.Equal(t, tt.want, AttendanceRate(rows))
		})
	}
}

func TestNextClass(t *testing.T) {
	// 2024-03-04 is a Monday
	at := func(h, m int) time.Time { return time.Date(2024, time.March, 4, h, m, 0, 0, time.UTC) }
	schedules := []models.Schedule{
		{Subject: "Math", DayOfWeek: "Monday", GradeLevel: "SMP 8", StartTime: models.NewTod(13, 0, 0)},
		{Subject: "English", DayOfWeek: "Monday", GradeLevel: "SMP 8", StartTime: models.NewTod(10, 0, 0)},
		{Subject: "Biologi", DayOfWeek: "Monday", GradeLevel: "SMA 10", StartTime: models.NewTod(9, 30, 0)},
		{Subject: "Kimia", DayOfWeek: "Tuesday", GradeLevel: "SMP 8", StartTime: models.NewTod(9, 30, 0)},
		{Subject: "Fisika", DayOfWeek: "Monday", GradeLevel: "SMP 8", Branch: "Bandung", StartTime: models.NewTod(9, 45, 0)},
	}

	next := NextClass(schedules, at(9, 0), "SMP 8", "Jakarta")
	require.NotNil(t, next)
	assert.Equal(t, "English", next.Subject)
	assert.Equal(t, "10:00:00", next.StartTime.String())

	next = NextClass(schedules, at(9, 0), "SMP 8", "Bandung")
	require.NotNil(t, next)
	assert.Equal(t, "Fisika", next.Subject)

	next = NextClass(schedules, at(11, 0), "SMP 8", "")
	require.NotNil(t, next)
	assert.Equal(t, "Math", next.Subject)

	// a class starting exactly now is not upcoming
	next = NextClass(schedules, at(13, 0), "SMP 8", "")
	assert.Nil(t, next)
}

func TestNextClassSingleSlot(t *testing.T) {
	monday := func(h int) time.Time { return time.Date(2024, time.March, 4, h, 0, 0, 0, time.UTC) }
	rows := []models.Schedule{{Subject: "Math", DayOfWeek: "Monday", GradeLevel: "SD 6", StartTime: models.NewTod(10, 0, 0)}}

	next := NextClass(rows, monday(9), "SD 6", "")
	require.NotNil(t, next)
	assert.Equal(t, "10:00:00", next.StartTime.String())
	assert.Nil(t, NextClass(rows, monday(11), "SD 6", ""))
}

func TestSortSchedules(t *testing.T) {
	rows := []models.Schedule{
		{Subject: "c", DayOfWeek: "Sunday", StartTime: models.NewTod(8, 0, 0)},
		{Subject: "b", DayOfWeek: "Monday", StartTime: models.NewTod(13, 0, 0)},
		{Subject: "a", DayOfWeek: "Monday", StartTime: models.NewTod(8, 0, 0)},
	}
	SortSchedules(rows)
	assert.Equal(t, "a", rows[0].Subject)
	assert.Equal(t, "b", rows[1].Subject)
	assert.Equal(t, "c", rows[2].Subject)
}

func TestAdminStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewDashboardService(db)
	ctx := context.Background()
	today := models.NewDate(2024, time.March, 4)

	a := seedStudent(t, db, "ani", "SMP 8", models.StudentStatusActive)
	b := seedStudent(t, db, "budi", "SMP 8", models.StudentStatusActive)
	seedStudent(t, db, "cici", "SMP 8", models.StudentStatusInactive)

	att := NewAttendanceService(db)
	_, err := att.Mark(ctx, a.ID, today, models.AttendancePresent, "")
	require.NoError(t, err)
	_, err = att.Mark(ctx, b.ID, today, models.AttendanceSick, "")
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Schedule{
		Subject: "Math", TeacherName: "Pak Joko", DayOfWeek: "Monday", GradeLevel: "SMP 8",
		StartTime: models.NewTod(10, 0, 0), EndTime: models.NewTod(11, 30, 0),
	}).Error)

	for _, g := range []models.Grade{
		{StudentID: a.ID, Subject: "Math", ExamType: "UTS", Score: 80, Date: today},
		{StudentID: b.ID, Subject: "Math", ExamType: "UTS", Score: 91, Date: today},
		{StudentID: a.ID, Subject: "Art", ExamType: "UTS", Score: 70, Date: today},
	} {
		g := g
		require.NoError(t, db.Create(&g).Error)
	}

	stats, err := svc.AdminStats(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalStudents)
	assert.Equal(t, int64(1), stats.AttendanceToday)
	assert.Equal(t, int64(1), stats.ActiveClasses)
	assert.InDelta(t, 80.3, stats.AverageScore, 0.0001)
	assert.Equal(t, []SubjectScore{{"Math", 86}, {"Art", 70}}, stats.SubjectPerformance)

	n, err := svc.ActiveStudentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStudentDashboard(t *testing.T) {
	db := newTestDB(t)
	svc := NewDashboardService(db)
	ctx := context.Background()
	stu := seedStudent(t, db, "dewi", "SMA 10", models.StudentStatusActive)

	require.NoError(t, db.Create(&models.Grade{StudentID: stu.ID, Subject: "Math", ExamType: "UH", Score: 90, Date: models.NewDate(2024, 1, 10)}).Error)
	require.NoError(t, db.Create(&models.Grade{StudentID: stu.ID, Subject: "Art", ExamType: "UH", Score: 75, Date: models.NewDate(2024, 2, 10)}).Error)
	require.NoError(t, db.Create(&models.Schedule{
		Subject: "Math", TeacherName: "Bu Rina", DayOfWeek: "Monday", GradeLevel: "SMA 10",
		StartTime: models.NewTod(15, 0, 0), EndTime: models.NewTod(16, 0, 0),
	}).Error)
	_, err := NewAttendanceService(db).Mark(ctx, stu.ID, models.NewDate(2024, 3, 1), models.AttendancePresent, "")
	require.NoError(t, err)

	dash, err := svc.ForStudent(ctx, *stu, time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []SubjectScore{{"Math", 90}, {"Art", 75}}, dash.SubjectPerformance)
	assert.Equal(t, 100, dash.AttendanceRate)
	require.NotNil(t, dash.NextClass)
	assert.Equal(t, "Math", dash.NextClass.Subject)
	assert.Equal(t, 2, dash.GradeCount)
	assert.Equal(t, "Art", dash.RecentGrades[0].Subject)
}
