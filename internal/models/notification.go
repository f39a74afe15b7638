package models

import "time"

// Notification is an in-app message to a user about a memo.
type Notification struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	MemoID       *uint     `json:"memo_id,omitempty"`
	Subject      string    `gorm:"size:256" json:"subject"`
	Body         string    `gorm:"type:text" json:"body"`
	Priority     string    `gorm:"size:8;default:normal" json:"priority"`
	Acknowledged bool      `gorm:"default:false;index" json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}
