package models

import (
	"time"
)

// Job types
const (
	JobTypeLogin         = "LOGIN"
	JobTypeReconnect     = "RECONNECT"
	JobTypeSyncProfile   = "SYNC_PROFILE"
	JobTypeSyncFollowers = "SYNC_FOLLOWERS"
	JobTypeSyncMedia     = "SYNC_MEDIA"
	JobTypeDeriveMetrics = "DERIVE_METRICS"
)

// Job statuses. Transitions only PENDING -> RUNNING -> {COMPLETED, FAILED};
// terminal states are never rewritten.
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

// LoginParams carries credentials for LOGIN and RECONNECT jobs
type LoginParams struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	VerificationCode string `json:"verification_code,omitempty"`
	AllowManual      bool   `json:"allow_manual"`
}

// JobMetadata is the per-type job payload. Only login-class jobs carry
// data; sync-class jobs need nothing beyond the account reference.
type JobMetadata struct {
	Login *LoginParams `json:"login,omitempty"`
}

// Job represents a unit of collection work processed by the dispatcher
type Job struct {
	ID              string      `gorm:"primaryKey;type:varchar(36);column:id"`
	TargetAccountID int64       `gorm:"not null;index;column:target_account_id"`
	OwnerID         string      `gorm:"type:varchar(36);not null;column:owner_id"`
	Type            string      `gorm:"type:varchar(20);not null;column:job_type"`
	Status          string      `gorm:"type:varchar(12);not null;default:'PENDING';index;column:status"`
	CreatedAt       time.Time   `gorm:"not null;index;column:created_at"`
	StartedAt       *time.Time  `gorm:"column:started_at"`
	FinishedAt      *time.Time  `gorm:"column:finished_at"`
	ProcessedItems  int         `gorm:"not null;default:0;column:processed_items"`
	ErrorMessage    string      `gorm:"type:text;column:error_message"`
	Metadata        JobMetadata `gorm:"type:jsonb;serializer:json;column:metadata"`

	// Relationships
	Account *TrackedAccount `gorm:"foreignKey:TargetAccountID;references:ID"`
}

// TableName specifies the table name for Job
func (Job) TableName() string {
	return "gw_jobs"
}

// IsTerminal reports whether the job status is COMPLETED or FAILED
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
