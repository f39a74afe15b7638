package models

import "time"

// AgendaItem is one discussion point within a meeting. SortOrder is unique
// per meeting and defines presentation order.
type AgendaItem struct {
	ID                      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	MeetingID               uint      `gorm:"not null;uniqueIndex:idx_agenda_meeting_sort" json:"meeting_id"`
	Name                    string    `gorm:"size:255;not null" json:"name"`
	Description             string    `gorm:"type:text" json:"description"`
	Status                  string    `gorm:"size:16;default:draft" json:"status"`
	SortOrder               int       `gorm:"not null;uniqueIndex:idx_agenda_meeting_sort" json:"sort_order"`
	PresenterID             *uint     `json:"presenter_id,omitempty"`
	MinistryID              *uint     `json:"ministry_id,omitempty"`
	MemoID                  *uint     `gorm:"index" json:"memo_id,omitempty"`
	CabinetApprovalRequired bool      `gorm:"default:false" json:"cabinet_approval_required"`
	CreatedBy               uint      `json:"created_by"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}
