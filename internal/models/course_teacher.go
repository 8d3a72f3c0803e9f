package models

import "time"

// CourseTeacher records that an account holds a teaching role in a course,
// with a snapshot of the remote name/email. Unique per (account, course).
type CourseTeacher struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AccountID    uint       `gorm:"not null;uniqueIndex:idx_teacher_account_course" json:"account_id"`
	CourseID     uint       `gorm:"not null;uniqueIndex:idx_teacher_account_course" json:"course_id"`
	FullName     string     `gorm:"size:255;not null" json:"full_name"`
	Email        string     `gorm:"size:255" json:"email"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Account      Account    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"account"`
	Course       Course     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
}
