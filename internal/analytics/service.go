package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gramwatch/gramwatch/internal/db"
	"github.com/gramwatch/gramwatch/internal/models"
	"github.com/gramwatch/gramwatch/pkg/logging"
)

// Service derives daily metrics and hashtag rollups from persisted state
type Service struct {
	media    *db.MediaRepository
	insights *db.InsightRepository
	logger   *zap.Logger
}

// NewService creates a new analytics service
func NewService(media *db.MediaRepository, insights *db.InsightRepository) *Service {
	return &Service{
		media:    media,
		insights: insights,
		logger:   logging.WithComponent("analytics"),
	}
}

// DeriveMetrics computes engagement aggregates from the account's
// content set, upserts the daily insight for today, and recomputes the
// full hashtag stat set from scratch. Returns the number of content
// items considered.
func (s *Service) DeriveMetrics(ctx context.Context, account *models.TrackedAccount) (int, error) {
	items, err := s.media.ListByAccount(ctx, account.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load content items: %w", err)
	}

	totalEngagement := TotalEngagement(items)
	rate := EngagementRate(totalEngagement, len(items), account.FollowersCount)

	today := time.Now().UTC().Truncate(24 * time.Hour)

	// Growth relative to the most recent prior insight; with no history
	// the baseline is the current count, so growth is zero.
	var growth int64
	if prior, err := s.insights.GetLatestBefore(ctx, account.ID, today); err != nil {
		return 0, fmt.Errorf("failed to load prior insight: %w", err)
	} else if prior != nil {
		growth = account.FollowersCount - prior.FollowersCount
	}

	insight := &models.DailyInsight{
		TargetAccountID: account.ID,
		Date:            today,
		FollowersCount:  account.FollowersCount,
		FollowersGrowth: growth,
		EngagementRate:  rate,
	}
	if err := s.insights.UpsertDaily(ctx, insight); err != nil {
		return 0, fmt.Errorf("failed to upsert daily insight: %w", err)
	}

	stats := ComputeHashtagStats(account.ID, items)
	if err := s.insights.ReplaceHashtagStats(ctx, account.ID, stats); err != nil {
		return 0, fmt.Errorf("failed to replace hashtag stats: %w", err)
	}

	s.logger.Info("Derived metrics",
		zap.Int64("account_id", account.ID),
		zap.Int("content_items", len(items)),
		zap.Float64("engagement_rate", rate),
		zap.Int64("followers_growth", growth),
		zap.Int("hashtags", len(stats)))

	return len(items), nil
}
