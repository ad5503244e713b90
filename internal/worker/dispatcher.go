// Package worker runs the job dispatch loop: claim the oldest pending
// job, route it by type to the login, collection, or derivation path,
// and record the terminal outcome. Jobs run strictly sequentially within
// one dispatcher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gramwatch/gramwatch/internal/analytics"
	"github.com/gramwatch/gramwatch/internal/db"
	"github.com/gramwatch/gramwatch/internal/instagram"
	"github.com/gramwatch/gramwatch/internal/models"
	"github.com/gramwatch/gramwatch/internal/sessioncrypto"
	"github.com/gramwatch/gramwatch/pkg/config"
	"github.com/gramwatch/gramwatch/pkg/logging"
	"github.com/gramwatch/gramwatch/pkg/telemetry"
)

// Error codes written into the job's error_message prefix
const (
	codeInvalidInput     = "INVALID_INPUT"
	codeNotFound         = "NOT_FOUND"
	codeSecondFactor     = "SECOND_FACTOR_REQUIRED"
	codeLoginFailed      = "LOGIN_FAILED"
	codeSessionExpired   = "SESSION_EXPIRED"
	codeCollectionFailed = "COLLECTION_FAILED"
	codeInternalError    = "INTERNAL_ERROR"
)

var (
	errMissingCredentials = errors.New("login job carries no credentials")
	errAccountNotFound    = errors.New("tracked account not found")
	errUnknownJobType     = errors.New("unknown job type")
	errHandlerPanic       = errors.New("job handler panicked")
)

// Dispatcher polls for pending jobs and processes them one at a time
type Dispatcher struct {
	cfg       *config.Config
	accounts  *db.AccountRepository
	jobs      *db.JobRepository
	sessions  *db.SessionRepository
	relations *db.RelationRepository
	media     *db.MediaRepository
	analytics *analytics.Service
	cipher    *sessioncrypto.Cipher
	logger    *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(cfg *config.Config, database *db.DB, cipher *sessioncrypto.Cipher) *Dispatcher {
	repo := db.NewRepository(database.DB)
	media := db.NewMediaRepository(repo)
	insights := db.NewInsightRepository(repo)

	return &Dispatcher{
		cfg:       cfg,
		accounts:  db.NewAccountRepository(repo),
		jobs:      db.NewJobRepository(repo),
		sessions:  db.NewSessionRepository(repo),
		relations: db.NewRelationRepository(repo),
		media:     media,
		analytics: analytics.NewService(media, insights),
		cipher:    cipher,
		logger:    logging.WithComponent("dispatcher"),
	}
}

// Run starts the dispatch loop. The loop never exits on a single job's
// failure; unexpected errors are logged and followed by an extended
// backoff so a persistent fault cannot hot-loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Starting job dispatcher",
		zap.Duration("poll_interval", d.cfg.Worker.PollInterval))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopping")
			return ctx.Err()
		default:
			job, err := d.jobs.ClaimNext(ctx)
			if err != nil {
				d.logger.Error("Failed to claim job", zap.Error(err))
				d.wait(ctx, 2*d.cfg.Worker.PollInterval)
				continue
			}
			if job == nil {
				d.wait(ctx, d.cfg.Worker.PollInterval)
				continue
			}

			if err := d.processJob(ctx, job); err != nil {
				d.logger.Error("Job processing failed unexpectedly",
					zap.String("job_id", job.ID),
					zap.Error(err))
				d.wait(ctx, 2*d.cfg.Worker.PollInterval)
				continue
			}

			d.wait(ctx, d.cfg.Worker.PollInterval)
		}
	}
}

// processJob routes one claimed job and writes its terminal status
func (d *Dispatcher) processJob(ctx context.Context, job *models.Job) error {
	logger := logging.WithJob(job.ID, job.Type)
	logger.Info("Processing job", zap.Int64("account_id", job.TargetAccountID))

	spanCtx, span := telemetry.StartSpan(ctx, "worker.process_job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.type", job.Type),
		))
	defer span.End()

	processed, err := d.dispatch(spanCtx, job)

	status := models.JobStatusCompleted
	message := ""
	if err != nil {
		status = models.JobStatusFailed
		message = fmt.Sprintf("%s: %v", errorCode(err), err)
		logger.Warn("Job failed", zap.String("error_code", errorCode(err)), zap.Error(err))
	} else {
		logger.Info("Job completed", zap.Int("processed", processed))
	}

	if finishErr := d.jobs.Finish(ctx, job.ID, status, processed, message); finishErr != nil {
		return fmt.Errorf("failed to record job outcome: %w", finishErr)
	}
	// A panic is still recorded as a FAILED job, but the loop takes the
	// extended backoff before touching the queue again
	if errors.Is(err, errHandlerPanic) {
		return err
	}
	return nil
}

// dispatch routes the job to its handler. A panicking handler must not
// unwind the loop; it converts to an error here.
func (d *Dispatcher) dispatch(ctx context.Context, job *models.Job) (processed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Job handler panicked",
				zap.String("job_id", job.ID),
				zap.String("job_type", job.Type),
				zap.Any("panic", r),
				zap.Stack("stack"))
			processed = 0
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
	}()

	switch job.Type {
	case models.JobTypeLogin, models.JobTypeReconnect:
		return d.handleLogin(ctx, job)
	case models.JobTypeSyncProfile:
		return d.handleSyncProfile(ctx, job)
	case models.JobTypeSyncFollowers:
		return d.handleSyncFollowers(ctx, job)
	case models.JobTypeSyncMedia:
		return d.handleSyncMedia(ctx, job)
	case models.JobTypeDeriveMetrics:
		return d.handleDeriveMetrics(ctx, job)
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownJobType, job.Type)
	}
}

// errorCode maps a handler error onto the surfaced error taxonomy
func errorCode(err error) string {
	switch {
	case errors.Is(err, instagram.ErrTwoFactorRequired):
		return codeSecondFactor
	case errors.Is(err, instagram.ErrLoginFailed):
		return codeLoginFailed
	case errors.Is(err, instagram.ErrSessionExpired):
		return codeSessionExpired
	case errors.Is(err, errMissingCredentials), errors.Is(err, errUnknownJobType):
		return codeInvalidInput
	case errors.Is(err, errAccountNotFound):
		return codeNotFound
	case errors.Is(err, errCollection):
		return codeCollectionFailed
	default:
		return codeInternalError
	}
}

// followUpJobs is the fixed sync batch enqueued after a successful login
func followUpJobs(account *models.TrackedAccount, ownerID string) []*models.Job {
	types := []string{
		models.JobTypeSyncProfile,
		models.JobTypeSyncFollowers,
		models.JobTypeSyncMedia,
		models.JobTypeDeriveMetrics,
	}
	now := time.Now().UTC()
	jobs := make([]*models.Job, 0, len(types))
	for i, jobType := range types {
		jobs = append(jobs, &models.Job{
			ID:              uuid.NewString(),
			TargetAccountID: account.ID,
			OwnerID:         ownerID,
			Type:            jobType,
			Status:          models.JobStatusPending,
			// Stagger creation times so the batch keeps its intended order
			// under oldest-first scheduling
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return jobs
}

// wait sleeps for the given duration or until the context is cancelled
func (d *Dispatcher) wait(ctx context.Context, duration time.Duration) {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
