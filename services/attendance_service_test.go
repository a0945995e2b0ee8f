package services

import (
	"bimbel_go/models"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceMarkIsUpsert(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttendanceService(db)
	ctx := context.Background()
	stu := seedStudent(t, db, "budi", "SMP 8", models.StudentStatusActive)
	day := models.NewDate(2024, time.March, 4)

	first, err := svc.Mark(ctx, stu.ID, day, models.AttendancePresent, "")
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, first.Status)

	second, err := svc.Mark(ctx, stu.ID, day, models.AttendanceSick, "demam")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.AttendanceSick, second.Status)
	assert.Equal(t, "demam", second.Notes)

	var n int64
	require.NoError(t, db.Model(&models.Attendance{}).Where("student_id = ?", stu.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestAttendanceClear(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttendanceService(db)
	ctx := context.Background()
	stu := seedStudent(t, db, "sari", "SMP 8", models.StudentStatusActive)
	day := models.NewDate(2024, time.March, 4)

	_, err := svc.Mark(ctx, stu.ID, day, models.AttendancePresent, "")
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, stu.ID, day))

	cur, err := svc.Current(ctx, stu.ID, day)
	require.NoError(t, err)
	assert.Nil(t, cur)

	// the pair can be marked again after clearing
	again, err := svc.Mark(ctx, stu.ID, day, models.AttendanceAlpha, "")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceAlpha, again.Status)

	assert.NoError(t, svc.Clear(ctx, stu.ID, models.NewDate(2024, time.March, 5)))
}

func TestAttendanceMarkRejectsBadInput(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttendanceService(db)
	ctx := context.Background()
	stu := seedStudent(t, db, "tono", "SMP 8", models.StudentStatusActive)
	day := models.NewDate(2024, time.March, 4)

	_, err := svc.Mark(ctx, stu.ID, day, "Late", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Mark(ctx, 9999, day, models.AttendancePresent, "")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestAttendanceRoster(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttendanceService(db)
	ctx := context.Background()
	zaki := seedStudent(t, db, "zaki", "SMA 10", models.StudentStatusActive)
	ani := seedStudent(t, db, "ani", "SMA 10", models.StudentStatusActive)
	seedStudent(t, db, "mira", "SMA 10", models.StudentStatusInactive)
	day := models.NewDate(2024, time.March, 4)

	_, err := svc.Mark(ctx, zaki.ID, day, models.AttendancePermission, "")
	require.NoError(t, err)
	_, err = svc.Mark(ctx, ani.ID, models.NewDate(2024, time.March, 3), models.AttendancePresent, "")
	require.NoError(t, err)

	roster, err := svc.Roster(ctx, day)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "ani", roster[0].Student.FullName)
	assert.Nil(t, roster[0].Status)
	assert.Equal(t, "zaki", roster[1].Student.FullName)
	require.NotNil(t, roster[1].Status)
	assert.Equal(t, models.AttendancePermission, *roster[1].Status)

	summary, err := svc.DailySummary(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, summary[models.AttendancePermission])
	assert.Equal(t, 1, summary["Unmarked"])
	assert.Equal(t, 0, summary[models.AttendancePresent])
}

func TestAttendanceBetween(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttendanceService(db)
	ctx := context.Background()
	stu := seedStudent(t, db, "rina", "SD 6", models.StudentStatusActive)

	for d := 1; d <= 5; d++ {
		_, err := svc.Mark(ctx, stu.ID, models.NewDate(2024, time.April, d), models.AttendancePresent, "")
		require.NoError(t, err)
	}

	rows, err := svc.Between(ctx, models.NewDate(2024, time.April, 2), models.NewDate(2024, time.April, 4))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-04-02", rows[0].Date.String())
	require.NotNil(t, rows[0].Student)
	assert.Equal(t, "rina", rows[0].Student.FullName)

	history, err := svc.ForStudent(ctx, stu.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, "2024-04-05", history[0].Date.String())
}
