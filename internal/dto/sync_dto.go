package dto

import (
	"encoding/json"
	"time"
)

// CourseSyncResult reports the outcome of a course sync run.
type CourseSyncResult struct {
	Synced  int `json:"synced"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// UserSyncResult reports the outcome of a user directory sync run.
type UserSyncResult struct {
	AccountsCreated   int `json:"accounts_created"`
	AccountsUpdated   int `json:"accounts_updated"`
	ShadowsCreated    int `json:"shadows_created"`
	ShadowsUpdated    int `json:"shadows_updated"`
	Skipped           int `json:"skipped"`
	IdentityConflicts int `json:"identity_conflicts"`
}

// EnrollmentSyncResult reports the outcome of enrollment and grade sync for
// one account.
type EnrollmentSyncResult struct {
	CoursesProcessed   int `json:"courses_processed"`
	CoursesSkipped     int `json:"courses_skipped"`
	EnrollmentsCreated int `json:"enrollments_created"`
	EnrollmentsUpdated int `json:"enrollments_updated"`
	GradesCreated      int `json:"grades_created"`
	GradesUpdated      int `json:"grades_updated"`
	GradesSkipped      int `json:"grades_skipped"`
}

// Add accumulates another account's counts into the receiver.
func (r *EnrollmentSyncResult) Add(other EnrollmentSyncResult) {
	r.CoursesProcessed += other.CoursesProcessed
	r.CoursesSkipped += other.CoursesSkipped
	r.EnrollmentsCreated += other.EnrollmentsCreated
	r.EnrollmentsUpdated += other.EnrollmentsUpdated
	r.GradesCreated += other.GradesCreated
	r.GradesUpdated += other.GradesUpdated
	r.GradesSkipped += other.GradesSkipped
}

// FleetSyncResult is the aggregate of running enrollment/grade sync over
// every account linked to a remote user. Errors is keyed by account id so
// the caller can report partial success precisely.
type FleetSyncResult struct {
	AccountsProcessed int                  `json:"accounts_processed"`
	Totals            EnrollmentSyncResult `json:"totals"`
	Errors            map[uint]string      `json:"errors,omitempty"`
}

// AssignmentSyncResult reports the outcome of assignment/submission sync.
type AssignmentSyncResult struct {
	CoursesProcessed     int `json:"courses_processed"`
	AssignmentsProcessed int `json:"assignments_processed"`
	SubmissionsProcessed int `json:"submissions_processed"`
	SubmissionsSkipped   int `json:"submissions_skipped"`
}

// TeacherSyncResult reports the outcome of teacher sync.
type TeacherSyncResult struct {
	CoursesProcessed int `json:"courses_processed"`
	TeachersSynced   int `json:"teachers_synced"`
	Skipped          int `json:"skipped"`
}

// ProgressSyncResult reports the outcome of activity completion sync.
type ProgressSyncResult struct {
	CoursesProcessed    int `json:"courses_processed"`
	CoursesShortCircuit int `json:"courses_completion_disabled"`
	RecordsSynced       int `json:"records_synced"`
	Skipped             int `json:"skipped"`
}

// ConnectionCheckResult is returned by the site-info probe.
type ConnectionCheckResult struct {
	SiteName         string          `json:"site_name"`
	Version          string          `json:"version"`
	Release          string          `json:"release"`
	RequiredFunction map[string]bool `json:"required_functions"`
}

// SyncRunResponse is the serialized audit row for one pipeline invocation.
type SyncRunResponse struct {
	RunID      string          `json:"run_id"`
	Pipeline   string          `json:"pipeline"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
