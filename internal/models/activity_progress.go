package models

import "time"

// CompletionState is the closed set of activity completion values Moodle
// reports for a course module.
type CompletionState int

// Completion states for a single course activity.
const (
	ActivityNotCompleted  CompletionState = 0
	ActivityCompleted     CompletionState = 1
	ActivityCompletedPass CompletionState = 2
	ActivityCompletedFail CompletionState = 3
)

// Valid reports whether the state is one of the documented values.
func (s CompletionState) Valid() bool {
	return s >= ActivityNotCompleted && s <= ActivityCompletedFail
}

// ActivityProgress tracks a single activity's completion for an account in
// a course. CourseModuleID is the remote cmid. Unique per
// (account, course, course module).
type ActivityProgress struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	AccountID      uint            `gorm:"not null;uniqueIndex:idx_progress_account_course_cm" json:"account_id"`
	CourseID       uint            `gorm:"not null;uniqueIndex:idx_progress_account_course_cm" json:"course_id"`
	CourseModuleID int64           `gorm:"not null;uniqueIndex:idx_progress_account_course_cm" json:"course_module_id"`
	ActivityName   string          `gorm:"size:255" json:"activity_name"`
	State          CompletionState `gorm:"not null;default:0" json:"state"`
	ModifiedAt     *time.Time      `json:"modified_at"`
	LastSyncedAt   *time.Time      `json:"last_synced_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Account        Account         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"account"`
	Course         Course          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
}
