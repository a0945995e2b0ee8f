package services

import (
	"bimbel_go/i18n"
	"bimbel_go/models"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	logMaintenanceSpec = "@hourly"
	sessionSweepSpec   = "@every 10m"
	jobTimeout         = 4 * time.Minute
)

// Sweeper evicts idle per-client state.
type Sweeper interface {
	Sweep() int
}

// JobDeps are the services driven by the scheduler. Nil members disable their job.
type JobDeps struct {
	Archive     *LogArchiveService
	Sessions    Sweeper
	Attendance  *AttendanceService
	Line        *LineMessagingService
	LineGroupID string
	RecapSpec   string
	Language    i18n.Language
	Location    *time.Location
}

// Scheduler runs background maintenance on cron specs.
type Scheduler struct {
	cron *cron.Cron
	deps JobDeps
}

func NewScheduler(deps JobDeps) (*Scheduler, error) {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Language == "" {
		deps.Language = i18n.DefaultLanguage
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(deps.Location),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		deps: deps,
	}

	if deps.Archive != nil {
		if _, err := s.cron.AddFunc(logMaintenanceSpec, s.runLogMaintenance); err != nil {
			return nil, fmt.Errorf("add log maintenance job: %w", err)
		}
	}
	if deps.Sessions != nil {
		if _, err := s.cron.AddFunc(sessionSweepSpec, s.runSessionSweep); err != nil {
			return nil, fmt.Errorf("add session sweep job: %w", err)
		}
	}
	if deps.Attendance != nil && deps.Line.Enabled() && deps.LineGroupID != "" && deps.RecapSpec != "" {
		if _, err := s.cron.AddFunc(deps.RecapSpec, s.runAttendanceRecap); err != nil {
			return nil, fmt.Errorf("add attendance recap job %q: %w", deps.RecapSpec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logrus.WithField("jobs", len(s.cron.Entries())).Info("Background scheduler started")
}

// Stop waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		logrus.Warn("Background jobs still running at shutdown")
	}
}

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runLogMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.deps.Archive.RunMaintenance(ctx)
}

func (s *Scheduler) runSessionSweep() {
	if n := s.deps.Sessions.Sweep(); n > 0 {
		logrus.WithField("evicted", n).Debug("Idle client sessions evicted")
	}
}

func (s *Scheduler) runAttendanceRecap() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	today := Today(s.deps.Location)
	msg, err := AttendanceRecap(ctx, s.deps.Attendance, today, s.deps.Language)
	if err != nil {
		logrus.WithError(err).Error("Failed to build attendance recap")
		return
	}
	if err := s.deps.Line.SendLineMessageToGroup(s.deps.LineGroupID, msg); err != nil {
		logrus.WithError(err).Error("Failed to push attendance recap")
	}
}

// AttendanceRecap renders the day's per-status counts as a chat message.
func AttendanceRecap(ctx context.Context, svc *AttendanceService, date models.Date, lang i18n.Language) (string, error) {
	summary, err := svc.DailySummary(ctx, date)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", i18n.T(lang, "recap"), date.String())
	for _, st := range models.AttendanceStatuses {
		fmt.Fprintf(&b, "%s: %d\n", i18n.T(lang, strings.ToLower(st)), summary[st])
	}
	fmt.Fprintf(&b, "%s: %d", i18n.T(lang, "unmarked"), summary["Unmarked"])
	return b.String(), nil
}
