package models

import (
	"time"
)

// Tracked account connection states
const (
	ConnectionDisconnected = "DISCONNECTED"
	ConnectionConnected    = "CONNECTED"
	ConnectionNeeds2FA     = "NEEDS_2FA"
	ConnectionExpired      = "EXPIRED"
)

// TrackedAccount represents an Instagram account being tracked
type TrackedAccount struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	OwnerID   string    `gorm:"type:varchar(36);not null;index;column:owner_id"`
	Username  string    `gorm:"type:varchar(64);not null;uniqueIndex:gw_accounts_ux1;column:username"`
	IGUserID  string    `gorm:"type:varchar(32);not null;default:'';column:ig_user_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Profile fields refreshed by profile syncs
	FullName      string `gorm:"type:varchar(128);not null;default:'';column:full_name"`
	ProfilePicURL string `gorm:"type:varchar(1024);not null;default:'';column:profile_pic_url"`
	Biography     string `gorm:"type:text;column:biography"`
	IsPrivate     bool   `gorm:"not null;default:false;column:is_private"`
	IsVerified    bool   `gorm:"not null;default:false;column:is_verified"`

	// Social stats
	FollowersCount int64 `gorm:"not null;default:0;column:followers_count"`
	FollowingCount int64 `gorm:"not null;default:0;column:following_count"`
	MediaCount     int64 `gorm:"not null;default:0;column:media_count"`

	// Connection tracking
	ConnectionState string     `gorm:"type:varchar(16);not null;default:'DISCONNECTED';column:connection_state"`
	LastSyncedAt    *time.Time `gorm:"column:last_synced_at"`
}

// TableName specifies the table name for TrackedAccount
func (TrackedAccount) TableName() string {
	return "gw_accounts"
}
