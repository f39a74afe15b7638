package models

import "time"

// Memo is a policy proposal moving through the approval lifecycle.
type Memo struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string     `gorm:"size:255;not null" json:"name"`
	Summary           string     `gorm:"type:text" json:"summary"`
	Body              string     `gorm:"type:text" json:"body"`
	MemoType          string     `gorm:"size:32;default:cabinet" json:"memo_type"`
	Priority          string     `gorm:"size:16;default:medium" json:"priority"`
	Status            string     `gorm:"size:16;default:draft;index" json:"status"`
	MinistryID        uint       `gorm:"not null;index" json:"ministry_id"`
	StateDepartmentID *uint      `json:"state_department_id,omitempty"`
	AgencyID          *uint      `json:"agency_id,omitempty"`
	CreatedBy         uint       `gorm:"not null;index" json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	SubmittedAt       *time.Time `json:"submitted_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AffectedEntity binds a memo to exactly one ministry, state department or
// agency. EntityType names which of the three foreign keys is set.
type AffectedEntity struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	MemoID            uint   `gorm:"not null;index"`
	EntityType        string `gorm:"size:32;not null"`
	MinistryID        *uint
	StateDepartmentID *uint
	AgencyID          *uint
}
