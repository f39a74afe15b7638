// Package document binds uploaded files to agenda items. Bytes live in a
// blob store, metadata in the database; the two are kept in step by
// compensating deletes because they share no transaction.
package document

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/blob"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/metrics"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var extCategories = map[string]string{
	".pdf":  "pdf",
	".doc":  "word",
	".docx": "word",
	".odt":  "word",
	".rtf":  "word",
	".ppt":  "powerpoint",
	".pptx": "powerpoint",
	".odp":  "powerpoint",
	".xls":  "excel",
	".xlsx": "excel",
	".ods":  "excel",
	".csv":  "excel",
	".txt":  "text",
	".md":   "text",
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".gif":  "image",
	".bmp":  "image",
	".svg":  "image",
	".webp": "image",
	".zip":  "archive",
	".rar":  "archive",
	".7z":   "archive",
	".tar":  "archive",
	".gz":   "archive",
}

// Classify maps a file name to a display category by extension.
func Classify(name string) string {
	if c, ok := extCategories[strings.ToLower(filepath.Ext(name))]; ok {
		return c
	}
	return "other"
}

// Sanitize drops every character outside [A-Za-z0-9._-].
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// StorageName returns a collision-resistant blob path for an upload.
func StorageName(agendaID uint, originalName string, now time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("agenda/%d/%d_%s_%s", agendaID, now.UnixNano(), token, Sanitize(filepath.Base(originalName)))
}

func detectMime(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func agendaExists(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&models.AgendaItem{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("document: check agenda item %d: %w", id, err)
	}
	return n > 0, nil
}

// Attach stores data for an agenda item. The blob is written before the
// metadata row; if the row cannot be written the blob is deleted again.
func Attach(ctx context.Context, db *gorm.DB, store blob.Store, agendaID uint, data []byte, originalName string, actor *identity.Actor) (*models.Document, error) {
	const op = "document.attach"

	var violations []string
	if len(data) == 0 {
		violations = append(violations, "file is empty")
	}
	exists, err := agendaExists(ctx, db, agendaID)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	if !exists {
		violations = append(violations, fmt.Sprintf("agenda_item_id %d does not reference an agenda item", agendaID))
	}
	if len(violations) > 0 {
		return nil, apperr.Validation(op, violations...)
	}
	if actor == nil {
		return nil, apperr.Unauthenticated(op)
	}

	displayName := filepath.Base(strings.TrimSpace(originalName))
	if displayName == "." || displayName == "/" || displayName == "" {
		displayName = "upload"
	}
	now := time.Now().UTC()
	mimeType := detectMime(displayName, data)

	locator, err := store.Put(ctx, StorageName(agendaID, displayName, now), data, mimeType)
	if err != nil {
		return nil, storageErr(op, err)
	}

	doc := models.Document{
		AgendaItemID: agendaID,
		Name:         displayName,
		FileType:     Classify(displayName),
		Locator:      locator,
		SizeBytes:    int64(len(data)),
		UploadedBy:   actor.ID,
		UploadedAt:   now,
		Metadata: datatypes.NewJSONType(models.DocumentMeta{
			OriginalName: originalName,
			MimeType:     mimeType,
			UploaderName: actor.DisplayName,
		}),
	}
	if err := db.WithContext(ctx).Create(&doc).Error; err != nil {
		cleanup(ctx, store, locator, "attach_compensation", err)
		return nil, storageErr(op, fmt.Errorf("document: save metadata: %w", err))
	}
	return &doc, nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.FromStore(op, err)
	}
	return apperr.Storage(op, err)
}

const cleanupTimeout = 30 * time.Second

// cleanup deletes a blob best-effort. Failures are logged and counted, never
// returned. cause is the failure that made the delete necessary, if any.
func cleanup(ctx context.Context, store blob.Store, locator, reason string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	err := store.Delete(ctx, locator)
	if errors.Is(err, blob.ErrNotFound) {
		err = nil
	}
	metrics.RecordBlobCleanup(reason, err)
	if err == nil {
		return
	}
	fields := logrus.Fields{"locator": locator, "reason": reason, "error": err}
	if cause != nil {
		fields["cause"] = cause
	}
	logrus.WithFields(fields).Warn("document: blob delete failed")
}

func find(ctx context.Context, db *gorm.DB, op string, id uint) (*models.Document, error) {
	var doc models.Document
	if err := db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "document", id)
		}
		return nil, apperr.FromStore(op, fmt.Errorf("document: get %d: %w", id, err))
	}
	return &doc, nil
}

// Get returns one document.
func Get(ctx context.Context, db *gorm.DB, id uint) (*models.Document, error) {
	return find(ctx, db, "document.get", id)
}

// Detach removes a document. The blob delete is best-effort so that a
// storage outage cannot make a document impossible to remove.
func Detach(ctx context.Context, db *gorm.DB, store blob.Store, id uint, actor *identity.Actor) (*models.Document, error) {
	const op = "document.detach"
	if actor == nil {
		return nil, apperr.Unauthenticated(op)
	}
	doc, err := find(ctx, db, op, id)
	if err != nil {
		return nil, err
	}

	cleanup(ctx, store, doc.Locator, "detach", nil)

	if err := db.WithContext(ctx).Delete(&models.Document{}, id).Error; err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("document: delete %d: %w", id, err))
	}
	return doc, nil
}

// List returns the documents of an agenda item, newest first.
func List(ctx context.Context, db *gorm.DB, agendaID uint) ([]models.Document, error) {
	docs := []models.Document{}
	err := db.WithContext(ctx).Where("agenda_item_id = ?", agendaID).
		Order("uploaded_at DESC").Order("id DESC").Find(&docs).Error
	if err != nil {
		return nil, apperr.FromStore("document.list", fmt.Errorf("document: list agenda %d: %w", agendaID, err))
	}
	return docs, nil
}

// ListFor returns the documents of several agenda items keyed by item,
// each list newest first.
func ListFor(ctx context.Context, db *gorm.DB, agendaIDs []uint) (map[uint][]models.Document, error) {
	out := make(map[uint][]models.Document, len(agendaIDs))
	if len(agendaIDs) == 0 {
		return out, nil
	}
	var docs []models.Document
	err := db.WithContext(ctx).Where("agenda_item_id IN ?", agendaIDs).
		Order("uploaded_at DESC").Order("id DESC").Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("document: list agenda items: %w", err)
	}
	for _, d := range docs {
		out[d.AgendaItemID] = append(out[d.AgendaItemID], d)
	}
	return out, nil
}

// RemoveForAgenda deletes the document rows of the given agenda items inside
// tx and returns their locators. Callers delete the blobs with Purge once
// the transaction has committed.
func RemoveForAgenda(ctx context.Context, tx *gorm.DB, agendaIDs []uint) ([]string, error) {
	if len(agendaIDs) == 0 {
		return nil, nil
	}
	var locators []string
	if err := tx.WithContext(ctx).Model(&models.Document{}).Where("agenda_item_id IN ?", agendaIDs).
		Pluck("locator", &locators).Error; err != nil {
		return nil, fmt.Errorf("document: collect locators: %w", err)
	}
	if err := tx.WithContext(ctx).Where("agenda_item_id IN ?", agendaIDs).Delete(&models.Document{}).Error; err != nil {
		return nil, fmt.Errorf("document: delete rows: %w", err)
	}
	return locators, nil
}

// Purge deletes blobs best-effort after their rows are gone.
func Purge(ctx context.Context, store blob.Store, locators []string, reason string) {
	for _, loc := range locators {
		cleanup(ctx, store, loc, reason, nil)
	}
}
