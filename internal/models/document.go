package models

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentMeta is the free-form metadata captured at upload time.
type DocumentMeta struct {
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	UploaderName string `json:"uploader_name"`
}

// Document is a file attached to an agenda item. Locator addresses the bytes
// in the blob store.
type Document struct {
	ID           uint                             `gorm:"primaryKey;autoIncrement" json:"id"`
	AgendaItemID uint                             `gorm:"not null;index" json:"agenda_item_id"`
	Name         string                           `gorm:"size:255;not null" json:"name"`
	FileType     string                           `gorm:"size:16" json:"file_type"`
	Locator      string                           `gorm:"size:512;not null" json:"locator"`
	SizeBytes    int64                            `json:"size_bytes"`
	UploadedBy   uint                             `gorm:"not null" json:"uploaded_by"`
	UploadedAt   time.Time                        `gorm:"index" json:"uploaded_at"`
	Metadata     datatypes.JSONType[DocumentMeta] `json:"metadata"`
}
