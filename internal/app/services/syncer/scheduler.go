package syncer

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	syncdomain "github.com/tradevault/platform/internal/app/domain/sync"
	"github.com/tradevault/platform/internal/app/system"
	"github.com/tradevault/platform/pkg/logger"
)

var _ system.Service = (*Scheduler)(nil)

// defaultSchedule applies to auto-sync connections without an explicit cron
// expression.
const defaultSchedule = "@hourly"

// Scheduler queues historical sync sessions for auto-sync connections on
// their cron schedules.
type Scheduler struct {
	service *Service
	log     *logger.Logger

	cron *cron.Cron
	now  func() time.Time
}

// NewScheduler creates a lifecycle-managed auto-sync scheduler.
func NewScheduler(service *Service, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("sync-scheduler")
	}
	return &Scheduler{
		service: service,
		log:     log,
		now:     time.Now,
	}
}

func (s *Scheduler) Name() string { return "sync-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() { s.scan(ctx) }); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("sync scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("sync scheduler stopped")
	return nil
}

// scan queues a session for every auto-sync connection whose schedule is due.
func (s *Scheduler) scan(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conns, err := s.service.connections.ListAutoSyncConnections(ctx)
	if err != nil {
		s.log.WithError(err).Warn("auto-sync scan failed")
		return
	}

	now := s.now().UTC()
	for _, conn := range conns {
		expr := conn.SyncSchedule
		if expr == "" {
			expr = defaultSchedule
		}
		schedule, err := cron.ParseStandard(expr)
		if err != nil {
			s.log.WithField("connection_id", conn.ID).WithError(err).Warn("bad sync schedule")
			continue
		}

		last := conn.LastSyncAt
		if last.IsZero() {
			last = conn.CreatedAt
		}
		if schedule.Next(last).After(now) {
			continue
		}

		if _, err := s.service.StartSession(ctx, conn.AccountID, conn.ID, syncdomain.KindHistorical); err != nil {
			// An already-active session is expected between runs.
			s.log.WithField("connection_id", conn.ID).WithError(err).Debug("auto-sync not queued")
			continue
		}
		s.log.WithField("connection_id", conn.ID).Info("auto-sync session queued")
	}
}
