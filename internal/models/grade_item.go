package models

import "time"

// GradeItem stores one grade-report line for a user inside an enrollment.
// IsNullGrade distinguishes "no grade yet" from an actual grade of zero;
// the raw value is stored as 0.0 in that case. Unique per
// (moodle user, enrollment, remote item id).
type GradeItem struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	MoodleUserID uint       `gorm:"not null;uniqueIndex:idx_grade_user_enrollment_item" json:"moodle_user_id"`
	EnrollmentID uint       `gorm:"not null;uniqueIndex:idx_grade_user_enrollment_item" json:"enrollment_id"`
	MoodleItemID int64      `gorm:"not null;uniqueIndex:idx_grade_user_enrollment_item" json:"moodle_item_id"`
	ItemName     string     `gorm:"size:255;not null" json:"item_name"`
	ItemType     string     `gorm:"size:64" json:"item_type"`
	ItemModule   string     `gorm:"size:64" json:"item_module"`
	Grade        float64    `json:"grade"`
	IsNullGrade  bool       `gorm:"not null;default:false" json:"is_null_grade"`
	GradedAt     *time.Time `json:"graded_at"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	MoodleUser   MoodleUser `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"moodle_user"`
	Enrollment   Enrollment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"enrollment"`
}
