package models

import "time"

// Course mirrors a course record from the remote Moodle instance. It is
// created and updated exclusively by the course sync pipeline and acts as
// the anchor every other synced entity references.
type Course struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	ShortName    string     `gorm:"size:255;not null" json:"short_name"`
	MoodleID     int64      `gorm:"uniqueIndex;not null" json:"moodle_id"`
	Active       bool       `gorm:"default:true" json:"active"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
