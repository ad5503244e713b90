package models

import (
	"time"
)

// Media types
const (
	MediaTypeImage    = "IMAGE"
	MediaTypeVideo    = "VIDEO"
	MediaTypeCarousel = "CAROUSEL"
)

// MediaItem represents one piece of published content
type MediaItem struct {
	ID              int64     `gorm:"primaryKey;autoIncrement;column:id"`
	TargetAccountID int64     `gorm:"not null;index;column:target_account_id"`
	ExternalMediaID string    `gorm:"type:varchar(32);not null;uniqueIndex:gw_media_ux1;column:external_media_id"`
	Shortcode       string    `gorm:"type:varchar(32);not null;column:shortcode"`
	MediaType       string    `gorm:"type:varchar(12);not null;column:media_type"`
	Caption         string    `gorm:"type:text;column:caption"`
	Hashtags        []string  `gorm:"type:jsonb;serializer:json;column:hashtags"`
	Mentions        []string  `gorm:"type:jsonb;serializer:json;column:mentions"`
	URL             string    `gorm:"type:varchar(2048);not null;default:'';column:url"`
	Permalink       string    `gorm:"type:varchar(255);not null;column:permalink"`
	LikesCount      int64     `gorm:"not null;default:0;column:likes_count"`
	CommentsCount   int64     `gorm:"not null;default:0;column:comments_count"`
	VideoViews      int64     `gorm:"not null;default:0;column:video_views"`
	PublishedAt     time.Time `gorm:"not null;column:published_at"`
}

// TableName specifies the table name for MediaItem
func (MediaItem) TableName() string {
	return "gw_media"
}

// Engagement returns likes plus comments
func (m *MediaItem) Engagement() int64 {
	return m.LikesCount + m.CommentsCount
}
