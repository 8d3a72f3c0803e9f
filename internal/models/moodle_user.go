package models

import "time"

// MoodleUser is the shadow record mirroring a remote user's identity. It
// exists independently of whether a full CRM account has been provisioned;
// AccountID is filled in once identity resolution links the two sides.
type MoodleUser struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	FullName     string     `gorm:"size:255;not null" json:"full_name"`
	Login        string     `gorm:"size:255;not null" json:"login"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	MoodleID     int64      `gorm:"uniqueIndex;not null" json:"moodle_id"`
	AccountID    *uint      `gorm:"index" json:"account_id"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Account      *Account   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"account,omitempty"`
}

// Linked reports whether the shadow user is attached to a CRM account.
func (m MoodleUser) Linked() bool {
	return m.AccountID != nil && *m.AccountID > 0
}
