package models

import (
	"time"
)

// HashtagStat is a per-tag engagement rollup. The full set for an account
// is recomputed from scratch on every derivation run.
type HashtagStat struct {
	ID              int64     `gorm:"primaryKey;autoIncrement;column:id"`
	TargetAccountID int64     `gorm:"not null;uniqueIndex:gw_hashtag_stats_ux1;column:target_account_id"`
	Tag             string    `gorm:"type:varchar(140);not null;uniqueIndex:gw_hashtag_stats_ux1;column:tag"`
	UsageCount      int       `gorm:"not null;default:0;column:usage_count"`
	TotalEngagement int64     `gorm:"not null;default:0;column:total_engagement"`
	AvgEngagement   float64   `gorm:"not null;default:0;column:avg_engagement"`
	FirstUsed       time.Time `gorm:"not null;column:first_used"`
	LastUsed        time.Time `gorm:"not null;column:last_used"`
}

// TableName specifies the table name for HashtagStat
func (HashtagStat) TableName() string {
	return "gw_hashtag_stats"
}

// DailyInsight holds derived account metrics for one day
type DailyInsight struct {
	ID              int64     `gorm:"primaryKey;autoIncrement;column:id"`
	TargetAccountID int64     `gorm:"not null;uniqueIndex:gw_daily_insights_ux1;column:target_account_id"`
	Date            time.Time `gorm:"type:date;not null;uniqueIndex:gw_daily_insights_ux1;column:date"`
	FollowersCount  int64     `gorm:"not null;default:0;column:followers_count"`
	FollowersGrowth int64     `gorm:"not null;default:0;column:followers_growth"`
	EngagementRate  float64   `gorm:"not null;default:0;column:engagement_rate"`
	Reach           int64     `gorm:"not null;default:0;column:reach"`
	Impressions     int64     `gorm:"not null;default:0;column:impressions"`
}

// TableName specifies the table name for DailyInsight
func (DailyInsight) TableName() string {
	return "gw_daily_insights"
}
