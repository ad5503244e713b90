// Package scheduler enqueues the periodic resync batch for every
// connected account. It only writes pending jobs; the dispatcher owns
// all execution.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gramwatch/gramwatch/internal/db"
	"github.com/gramwatch/gramwatch/internal/models"
	"github.com/gramwatch/gramwatch/pkg/config"
	"github.com/gramwatch/gramwatch/pkg/logging"
)

// resyncTypes is the job batch enqueued per account on each tick
var resyncTypes = []string{
	models.JobTypeSyncProfile,
	models.JobTypeSyncFollowers,
	models.JobTypeSyncMedia,
	models.JobTypeDeriveMetrics,
}

// Scheduler enqueues sync jobs on a cron schedule
type Scheduler struct {
	cfg      *config.Config
	accounts *db.AccountRepository
	jobs     *db.JobRepository
	cron     *cron.Cron
	logger   *zap.Logger
}

// New creates a new scheduler
func New(cfg *config.Config, database *db.DB) *Scheduler {
	repo := db.NewRepository(database.DB)
	return &Scheduler{
		cfg:      cfg,
		accounts: db.NewAccountRepository(repo),
		jobs:     db.NewJobRepository(repo),
		cron:     cron.New(cron.WithSeconds()),
		logger:   logging.WithComponent("scheduler"),
	}
}

// Start registers the resync entry and starts the cron loop. An empty
// schedule disables periodic resync entirely.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Worker.ResyncSchedule == "" {
		s.logger.Info("Periodic resync disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.Worker.ResyncSchedule, func() {
		if err := s.enqueueResync(ctx); err != nil {
			s.logger.Error("Resync enqueue failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("resync_schedule", s.cfg.Worker.ResyncSchedule))
	return nil
}

// Stop stops the cron loop and waits for any running enqueue to finish
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped")
}

// enqueueResync writes one sync batch per connected account
func (s *Scheduler) enqueueResync(ctx context.Context) error {
	accounts, err := s.accounts.ListConnected(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		s.logger.Debug("No connected accounts to resync")
		return nil
	}

	now := time.Now().UTC()
	var batch []*models.Job
	for _, account := range accounts {
		for i, jobType := range resyncTypes {
			batch = append(batch, &models.Job{
				ID:              uuid.NewString(),
				TargetAccountID: account.ID,
				OwnerID:         account.OwnerID,
				Type:            jobType,
				Status:          models.JobStatusPending,
				CreatedAt:       now.Add(time.Duration(i) * time.Millisecond),
			})
		}
	}
	if err := s.jobs.CreateBatch(ctx, batch); err != nil {
		return err
	}

	s.logger.Info("Resync batch enqueued",
		zap.Int("accounts", len(accounts)),
		zap.Int("jobs", len(batch)))
	return nil
}
