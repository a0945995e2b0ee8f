package services

import (
	"bimbel_go/i18n"
	"bimbel_go/models"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct{ calls int }

func (c *countingSweeper) Sweep() int {
	c.calls++
	return 0
}

func TestAttendanceRecap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := models.NewDate(2024, time.May, 6)

	a := seedStudent(t, db, "ani", "SMP 8", models.StudentStatusActive)
	b := seedStudent(t, db, "budi", "SMP 8", models.StudentStatusActive)
	seedStudent(t, db, "cici", "SMP 9", models.StudentStatusActive)
	svc := NewAttendanceService(db)
	_, err := svc.Mark(ctx, a.ID, day, models.AttendancePresent, "")
	require.NoError(t, err)
	_, err = svc.Mark(ctx, b.ID, day, models.AttendanceSick, "")
	require.NoError(t, err)

	msg, err := AttendanceRecap(ctx, svc, day, i18n.Indonesian)
	require.NoError(t, err)
	assert.Equal(t, "Rekap absensi 2024-05-06\nHadir: 1\nIzin: 0\nSakit: 1\nAlpa: 0\nBelum diisi: 1", msg)

	msg, err = AttendanceRecap(ctx, svc, day, i18n.English)
	require.NoError(t, err)
	assert.Contains(t, msg, "Present: 1")
	assert.Contains(t, msg, "Not marked: 1")
}

func TestSchedulerRegistersConfiguredJobs(t *testing.T) {
	db := newTestDB(t)

	s, err := NewScheduler(JobDeps{Sessions: &countingSweeper{}})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())

	// recap needs LINE credentials
	s, err = NewScheduler(JobDeps{
		Archive:     &LogArchiveService{db: db, now: time.Now},
		Sessions:    &countingSweeper{},
		Attendance:  NewAttendanceService(db),
		Line:        NewLineMessagingService("", ""),
		LineGroupID: "group",
		RecapSpec:   "0 18 * * 1-6",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestSessionSweepJob(t *testing.T) {
	sw := &countingSweeper{}
	s, err := NewScheduler(JobDeps{Sessions: sw})
	require.NoError(t, err)
	s.runSessionSweep()
	assert.Equal(t, 1, sw.calls)
}
