package models

import "time"

// Ministry is a top-level government entity. Memos name one as their primary
// owner and may list several as affected.
type Ministry struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Code string `gorm:"size:32;uniqueIndex" json:"code"`
	Name string `gorm:"size:255;not null" json:"name"`
}

// StateDepartment is a department, optionally under a ministry.
type StateDepartment struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Code       string `gorm:"size:32;uniqueIndex" json:"code"`
	Name       string `gorm:"size:255;not null" json:"name"`
	MinistryID *uint  `gorm:"index" json:"ministry_id,omitempty"`
}

// Agency is a government agency, optionally under a ministry.
type Agency struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Code       string `gorm:"size:32;uniqueIndex" json:"code"`
	Name       string `gorm:"size:255;not null" json:"name"`
	MinistryID *uint  `gorm:"index" json:"ministry_id,omitempty"`
}

// User mirrors an identity resolved by the identity provider. Rows exist so
// that chair, presenter, creator and approver references have display names.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	Email       string    `gorm:"size:255;index" json:"email"`
	Role        string    `gorm:"size:16;default:user;index" json:"role"`
	UpdatedAt   time.Time `json:"updated_at"`
}
