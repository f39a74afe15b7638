package models

import "time"

// Meeting is a committee or cabinet sitting. It owns its agenda items and
// participant rows.
type Meeting struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	Type            string     `gorm:"size:32;not null;index" json:"type"`
	StartAt         time.Time  `gorm:"not null;index" json:"start_at"`
	DurationMinutes int        `gorm:"default:60" json:"duration_minutes"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Location        string     `gorm:"size:255" json:"location"`
	ChairID         *uint      `json:"chair_id,omitempty"`
	Status          string     `gorm:"size:16;default:scheduled;index" json:"status"`
	Description     string     `gorm:"type:text" json:"description"`
	Color           string     `gorm:"size:16" json:"color"`
	CreatedBy       uint       `gorm:"not null" json:"created_by"`
	ApprovedBy      *uint      `json:"approved_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MeetingParticipant is one user attending a meeting. Participants are
// unordered.
type MeetingParticipant struct {
	MeetingID uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey"`
	CreatedAt time.Time
}
