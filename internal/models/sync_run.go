package models

import (
	"time"

	"gorm.io/datatypes"
)

// Sync run statuses.
const (
	SyncRunRunning   = "running"
	SyncRunSucceeded = "succeeded"
	SyncRunFailed    = "failed"
)

// SyncRun is the audit record persisted for every pipeline invocation. The
// Result column holds the pipeline's structured counts as JSON.
type SyncRun struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	RunID      string         `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	Pipeline   string         `gorm:"size:64;not null;index" json:"pipeline"`
	Status     string         `gorm:"size:16;not null" json:"status"`
	Result     datatypes.JSON `json:"result"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
	CreatedAt  time.Time      `json:"created_at"`
}
