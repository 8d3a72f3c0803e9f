package models

import "time"

// Submission statuses as reported by the remote assignment module.
const (
	SubmissionStatusNew       = "new"
	SubmissionStatusSubmitted = "submitted"
	SubmissionStatusDraft     = "draft"
	SubmissionStatusGraded    = "graded"
)

// Submission links an assignment to the CRM account that handed it in.
// Unique per (assignment, account). Submission sync never creates accounts:
// rows whose remote userid has no matching account are skipped.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_submission_assignment_account" json:"assignment_id"`
	AccountID    uint       `gorm:"not null;uniqueIndex:idx_submission_assignment_account" json:"account_id"`
	Status       string     `gorm:"size:32;not null" json:"status"`
	Grade        *float64   `json:"grade"`
	ModifiedAt   *time.Time `json:"modified_at"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Assignment   Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Account      Account    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"account"`
}

// IsGraded reports whether the submission carries a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}
