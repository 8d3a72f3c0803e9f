package models

import "time"

// Completion states tracked on an enrollment.
const (
	CompletionNotStarted = "not_started"
	CompletionInProgress = "in_progress"
	CompletionCompleted  = "completed"
)

// Enrollment links a shadow user to a local course and snapshots the course
// naming as seen at sync time. Unique per (course, moodle user).
type Enrollment struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CourseID        uint       `gorm:"not null;uniqueIndex:idx_enrollment_course_user" json:"course_id"`
	MoodleUserID    uint       `gorm:"not null;uniqueIndex:idx_enrollment_course_user" json:"moodle_user_id"`
	CourseName      string     `gorm:"size:255;not null" json:"course_name"`
	CourseShortName string     `gorm:"size:255" json:"course_short_name"`
	EnrolledAt      *time.Time `json:"enrolled_at"`
	CompletionState string     `gorm:"size:32;not null;default:not_started" json:"completion_state"`
	ProgressPercent float64    `json:"progress_percent"`
	LastSyncedAt    *time.Time `json:"last_synced_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Course          Course     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
	MoodleUser      MoodleUser `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"moodle_user"`
}
