package models

import (
	"time"
)

// Relation change types
const (
	ChangeNewFollower      = "NEW_FOLLOWER"
	ChangeUnfollowed       = "UNFOLLOWED"
	ChangeStartedFollowing = "STARTED_FOLLOWING"
	ChangeStoppedFollowing = "STOPPED_FOLLOWING"
)

// Relation represents a follower/following connection between the tracked
// account and another account. IsFollowingBack is always
// IsFollower && IsFollowing.
type Relation struct {
	ID              int64  `gorm:"primaryKey;autoIncrement;column:id"`
	TargetAccountID int64  `gorm:"not null;uniqueIndex:gw_relations_ux1;column:target_account_id"`
	ExternalID      string `gorm:"type:varchar(32);not null;uniqueIndex:gw_relations_ux1;column:external_id"`
	Username        string `gorm:"type:varchar(64);not null;column:username"`
	DisplayName     string `gorm:"type:varchar(128);not null;default:'';column:display_name"`
	AvatarURL       string `gorm:"type:varchar(1024);not null;default:'';column:avatar_url"`
	IsVerified      bool   `gorm:"not null;default:false;column:is_verified"`
	IsPrivate       bool   `gorm:"not null;default:false;column:is_private"`
	IsFollower      bool   `gorm:"not null;default:false;column:is_follower"`
	IsFollowing     bool   `gorm:"not null;default:false;column:is_following"`
	IsFollowingBack bool   `gorm:"not null;default:false;column:is_following_back"`
}

// TableName specifies the table name for Relation
func (Relation) TableName() string {
	return "gw_relations"
}

// RelationEvent is an append-only record of a single relation change
type RelationEvent struct {
	ID              int64     `gorm:"primaryKey;autoIncrement;column:id"`
	TargetAccountID int64     `gorm:"not null;index;column:target_account_id"`
	ExternalID      string    `gorm:"type:varchar(32);not null;column:external_id"`
	Username        string    `gorm:"type:varchar(64);not null;column:username"`
	ChangeType      string    `gorm:"type:varchar(20);not null;column:change_type"`
	DetectedAt      time.Time `gorm:"not null;column:detected_at"`
}

// TableName specifies the table name for RelationEvent
func (RelationEvent) TableName() string {
	return "gw_relation_events"
}

// SnapshotData holds the raw id lists captured with a snapshot
type SnapshotData struct {
	FollowerIDs  []string `json:"follower_ids"`
	FollowingIDs []string `json:"following_ids"`
}

// RelationSnapshot is an append-only point-in-time capture of relation
// state, used as the diff base for the next sync
type RelationSnapshot struct {
	ID              int64        `gorm:"primaryKey;autoIncrement;column:id"`
	TargetAccountID int64        `gorm:"not null;index;column:target_account_id"`
	CapturedAt      time.Time    `gorm:"not null;column:captured_at"`
	TotalFollowers  int          `gorm:"not null;default:0;column:total_followers"`
	TotalFollowing  int          `gorm:"not null;default:0;column:total_following"`
	NewFollowers    int          `gorm:"not null;default:0;column:new_followers"`
	LostFollowers   int          `gorm:"not null;default:0;column:lost_followers"`
	NonFollowers    int          `gorm:"not null;default:0;column:non_followers"`
	SnapshotData    SnapshotData `gorm:"type:jsonb;serializer:json;column:snapshot_data"`
}

// TableName specifies the table name for RelationSnapshot
func (RelationSnapshot) TableName() string {
	return "gw_relation_snapshots"
}
