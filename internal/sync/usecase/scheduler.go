package usecase

import (
	"context"
	"time"

	"dealdesk-backend/internal/sync/domain"
	"dealdesk-backend/internal/sync/repository"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SyncEnqueuer submits a sync job to the queue. The queue service
// implements it; admission rejections come back as errors.
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, configID, service, triggerType, triggeredBy string) (jobID string, err error)
}

// Scheduler polls for due configurations and enqueues scheduled sync jobs.
type Scheduler struct {
	configs  repository.ConfigRepository
	enqueuer SyncEnqueuer
	cron     *cron.Cron
	log      *logrus.Entry
	now      func() time.Time
}

func NewScheduler(configs repository.ConfigRepository, enqueuer SyncEnqueuer, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		configs:  configs,
		enqueuer: enqueuer,
		cron:     cron.New(),
		log:      log,
		now:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("sync scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) tick() {
	now := s.now()
	due, err := s.configs.ListDue(now)
	if err != nil {
		s.log.Errorf("failed to list due configurations: %v", err)
		return
	}

	for _, cfg := range due {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := s.enqueuer.EnqueueSync(ctx, cfg.ID, cfg.Service, domain.TriggerScheduled, "scheduler")
		cancel()
		if err != nil {
			// Usually an admission rejection because the previous run is
			// still going. The config stays due and is retried next tick.
			s.log.WithField("config_id", cfg.ID).Infof("scheduled enqueue skipped: %v", err)
			continue
		}

		// Advance next_sync_at so the config is not re-enqueued every tick
		// while the job sits in the queue.
		if err := s.configs.UpdateNextSyncAt(cfg.ID, NextRunTime(cfg.Schedule, now)); err != nil {
			s.log.WithField("config_id", cfg.ID).Warnf("failed to advance next_sync_at: %v", err)
		}
	}
}
