package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gramwatch/gramwatch/internal/models"
)

// ErrTerminalJob is returned when a write targets a job that already
// reached COMPLETED or FAILED.
var ErrTerminalJob = errors.New("job is already in a terminal state")

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AccountRepository provides tracked-account database operations
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(repo *Repository) *AccountRepository {
	return &AccountRepository{Repository: repo}
}

// GetByID retrieves a tracked account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.TrackedAccount, error) {
	var account models.TrackedAccount
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByUsername retrieves a tracked account by username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.TrackedAccount, error) {
	var account models.TrackedAccount
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Create creates a new tracked account
func (r *AccountRepository) Create(ctx context.Context, account *models.TrackedAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// Update updates a tracked account
func (r *AccountRepository) Update(ctx context.Context, account *models.TrackedAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// SetConnectionState updates only the connection state of an account
func (r *AccountRepository) SetConnectionState(ctx context.Context, id int64, state string) error {
	return r.db.WithContext(ctx).
		Model(&models.TrackedAccount{}).
		Where("id = ?", id).
		Update("connection_state", state).Error
}

// ListConnected retrieves all accounts with a valid connection
func (r *AccountRepository) ListConnected(ctx context.Context) ([]*models.TrackedAccount, error) {
	var accounts []*models.TrackedAccount
	if err := r.db.WithContext(ctx).
		Where("connection_state = ?", models.ConnectionConnected).
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// JobRepository provides job queue database operations
type JobRepository struct {
	*Repository
}

// NewJobRepository creates a new job repository
func NewJobRepository(repo *Repository) *JobRepository {
	return &JobRepository{Repository: repo}
}

// claimSQL transitions the oldest PENDING job to RUNNING in a single
// statement so that concurrent dispatchers cannot claim the same row.
const claimSQL = `
UPDATE gw_jobs
SET status = 'RUNNING', started_at = ?
WHERE id = (
	SELECT id FROM gw_jobs
	WHERE status = 'PENDING'
	ORDER BY created_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id`

// ClaimNext claims the oldest pending job and returns it. Returns nil
// without error when no job is pending. Only PENDING rows are eligible;
// a job stranded in RUNNING by a crashed run is never re-claimed.
// Postgres claims in the single locked statement; other dialects fall
// back to a claim inside one transaction.
func (r *JobRepository) ClaimNext(ctx context.Context) (*models.Job, error) {
	if r.db.Dialector.Name() == "postgres" {
		return r.claimNextLocked(ctx)
	}
	return r.claimNextTx(ctx)
}

func (r *JobRepository) claimNextLocked(ctx context.Context) (*models.Job, error) {
	var claimedID string
	res := r.db.WithContext(ctx).Raw(claimSQL, time.Now().UTC()).Scan(&claimedID)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim job: %w", res.Error)
	}
	if res.RowsAffected == 0 || claimedID == "" {
		return nil, nil
	}

	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", claimedID).Error; err != nil {
		return nil, fmt.Errorf("failed to load claimed job %s: %w", claimedID, err)
	}
	return &job, nil
}

func (r *JobRepository) claimNextTx(ctx context.Context) (*models.Job, error) {
	var claimed *models.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidate models.Job
		if err := tx.Where("status = ?", models.JobStatusPending).
			Order("created_at ASC").
			First(&candidate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", candidate.ID, models.JobStatusPending).
			Updates(map[string]interface{}{
				"status":     models.JobStatusRunning,
				"started_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		candidate.Status = models.JobStatusRunning
		candidate.StartedAt = &now
		claimed = &candidate
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return claimed, nil
}

// Finish writes the terminal status of a job. The update is conditional
// on the job still being RUNNING; writing to a terminal job fails with
// ErrTerminalJob.
func (r *JobRepository) Finish(ctx context.Context, id, status string, processed int, errorMessage string) error {
	if status != models.JobStatusCompleted && status != models.JobStatusFailed {
		return fmt.Errorf("invalid terminal status %q", status)
	}

	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":          status,
			"finished_at":     time.Now().UTC(),
			"processed_items": processed,
			"error_message":   errorMessage,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finish job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finish job %s: %w", id, ErrTerminalJob)
	}
	return nil
}

// Create inserts a new pending job
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// CreateBatch inserts multiple pending jobs
func (r *JobRepository) CreateBatch(ctx context.Context, jobs []*models.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(jobs).Error
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// SessionRepository provides session database operations
type SessionRepository struct {
	*Repository
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(repo *Repository) *SessionRepository {
	return &SessionRepository{Repository: repo}
}

// Upsert writes the session for an account, replacing any existing row
func (r *SessionRepository) Upsert(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "target_account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"owner_id", "encrypted_payload", "last_login_at", "state",
			}),
		}).
		Create(session).Error
}

// GetByAccount retrieves the session for an account
func (r *SessionRepository) GetByAccount(ctx context.Context, accountID int64) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).
		Where("target_account_id = ?", accountID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// SetState updates only the state of an account's session
func (r *SessionRepository) SetState(ctx context.Context, accountID int64, state string) error {
	return r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("target_account_id = ?", accountID).
		Update("state", state).Error
}

// RelationRepository provides relation database operations
type RelationRepository struct {
	*Repository
}

// NewRelationRepository creates a new relation repository
func NewRelationRepository(repo *Repository) *RelationRepository {
	return &RelationRepository{Repository: repo}
}

// UpsertBatch writes merged relation records, updating existing rows in
// place on the (target_account_id, external_id) key
func (r *RelationRepository) UpsertBatch(ctx context.Context, relations []*models.Relation) error {
	if len(relations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "target_account_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "display_name", "avatar_url", "is_verified", "is_private",
				"is_follower", "is_following", "is_following_back",
			}),
		}).
		CreateInBatches(relations, 500).Error
}

// InsertEvents appends a batch of relation change events
func (r *RelationRepository) InsertEvents(ctx context.Context, events []*models.RelationEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(events, 500).Error
}

// GetByExternalIDs retrieves stored relation rows for a set of external
// ids, used to recover display data for relations absent from the
// current capture
func (r *RelationRepository) GetByExternalIDs(ctx context.Context, accountID int64, externalIDs []string) ([]*models.Relation, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var relations []*models.Relation
	if err := r.db.WithContext(ctx).
		Where("target_account_id = ? AND external_id IN ?", accountID, externalIDs).
		Find(&relations).Error; err != nil {
		return nil, err
	}
	return relations, nil
}

// CreateSnapshot appends a relation snapshot
func (r *RelationRepository) CreateSnapshot(ctx context.Context, snapshot *models.RelationSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// GetLatestSnapshot retrieves the most recent snapshot for an account
func (r *RelationRepository) GetLatestSnapshot(ctx context.Context, accountID int64) (*models.RelationSnapshot, error) {
	var snapshot models.RelationSnapshot
	if err := r.db.WithContext(ctx).
		Where("target_account_id = ?", accountID).
		Order("captured_at DESC").
		First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// MediaRepository provides content-item database operations
type MediaRepository struct {
	*Repository
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(repo *Repository) *MediaRepository {
	return &MediaRepository{Repository: repo}
}

// UpsertBatch writes media items, updating engagement counters on the
// external_media_id key
func (r *MediaRepository) UpsertBatch(ctx context.Context, items []*models.MediaItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_media_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"caption", "hashtags", "mentions", "url", "permalink",
				"likes_count", "comments_count", "video_views",
			}),
		}).
		CreateInBatches(items, 200).Error
}

// ListByAccount retrieves all media items for an account
func (r *MediaRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.MediaItem, error) {
	var items []*models.MediaItem
	if err := r.db.WithContext(ctx).
		Where("target_account_id = ?", accountID).
		Order("published_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// InsightRepository provides derived-metric database operations
type InsightRepository struct {
	*Repository
}

// NewInsightRepository creates a new insight repository
func NewInsightRepository(repo *Repository) *InsightRepository {
	return &InsightRepository{Repository: repo}
}

// UpsertDaily writes the daily insight row keyed by (account, date)
func (r *InsightRepository) UpsertDaily(ctx context.Context, insight *models.DailyInsight) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "target_account_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"followers_count", "followers_growth", "engagement_rate", "reach", "impressions",
			}),
		}).
		Create(insight).Error
}

// GetLatestBefore retrieves the most recent insight strictly before the
// given date, used to compute follower growth
func (r *InsightRepository) GetLatestBefore(ctx context.Context, accountID int64, date time.Time) (*models.DailyInsight, error) {
	var insight models.DailyInsight
	if err := r.db.WithContext(ctx).
		Where("target_account_id = ? AND date < ?", accountID, date).
		Order("date DESC").
		First(&insight).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &insight, nil
}

// ListDaily retrieves recent daily insights, newest first
func (r *InsightRepository) ListDaily(ctx context.Context, accountID int64, limit int) ([]*models.DailyInsight, error) {
	var insights []*models.DailyInsight
	if err := r.db.WithContext(ctx).
		Where("target_account_id = ?", accountID).
		Order("date DESC").
		Limit(limit).
		Find(&insights).Error; err != nil {
		return nil, err
	}
	return insights, nil
}

// ReplaceHashtagStats replaces the full hashtag stat set for an account
// inside one transaction
func (r *InsightRepository) ReplaceHashtagStats(ctx context.Context, accountID int64, stats []*models.HashtagStat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_account_id = ?", accountID).
			Delete(&models.HashtagStat{}).Error; err != nil {
			return fmt.Errorf("failed to clear hashtag stats: %w", err)
		}
		if len(stats) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(stats, 500).Error; err != nil {
			return fmt.Errorf("failed to insert hashtag stats: %w", err)
		}
		return nil
	})
}

// ListHashtagStats retrieves hashtag stats for an account ordered by usage
func (r *InsightRepository) ListHashtagStats(ctx context.Context, accountID int64) ([]*models.HashtagStat, error) {
	var stats []*models.HashtagStat
	if err := r.db.WithContext(ctx).
		Where("target_account_id = ?", accountID).
		Order("usage_count DESC, total_engagement DESC").
		Find(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
