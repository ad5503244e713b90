package models

import (
	"time"
)

// Session states
const (
	SessionStateValid    = "VALID"
	SessionStateExpired  = "EXPIRED"
	SessionStateNeeds2FA = "NEEDS_2FA"
	SessionStateInvalid  = "INVALID"
)

// Session holds the encrypted browser session for one tracked account.
// One row per account; overwritten on each successful login.
type Session struct {
	ID              int64     `gorm:"primaryKey;autoIncrement;column:id"`
	TargetAccountID int64     `gorm:"not null;uniqueIndex:gw_sessions_ux1;column:target_account_id"`
	OwnerID         string    `gorm:"type:varchar(36);not null;column:owner_id"`
	EncryptedPayload string   `gorm:"type:text;not null;column:encrypted_payload"`
	LastLoginAt     time.Time `gorm:"not null;column:last_login_at"`
	State           string    `gorm:"type:varchar(12);not null;default:'VALID';column:state"`

	// Relationships
	Account *TrackedAccount `gorm:"foreignKey:TargetAccountID;references:ID"`
}

// TableName specifies the table name for Session
func (Session) TableName() string {
	return "gw_sessions"
}
