package models

import "time"

// Account is the CRM's own user record. The sync engine never deletes
// accounts; it matches existing ones by Moodle ID or email and only creates
// new ones as a byproduct of user sync or identity resolution. MoodleID is
// nullable so accounts that predate the integration remain valid.
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Login     string    `gorm:"size:255;uniqueIndex;not null" json:"login"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	MoodleID  *int64    `gorm:"uniqueIndex" json:"moodle_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMoodleID reports whether the account has been linked to a remote user.
func (a Account) HasMoodleID() bool {
	return a.MoodleID != nil && *a.MoodleID > 0
}
