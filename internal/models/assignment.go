package models

import "time"

// Assignment mirrors a Moodle assignment inside one of the synced courses.
type Assignment struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	MoodleID     int64      `gorm:"uniqueIndex;not null" json:"moodle_id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	DueDate      *time.Time `json:"due_date"`
	CourseID     uint       `gorm:"not null;index" json:"course_id"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Course       Course     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
}
