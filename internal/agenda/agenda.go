// Package agenda sequences agenda items within a meeting and links them to
// memos, presenters and ministries.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/blob"
	"github.com/zulandar/docket/internal/document"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/gorm"
)

// Agenda item statuses.
const (
	StatusDraft      = "draft"
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusPublished  = "published"
	StatusFinalized  = "finalized"
)

var validStatuses = map[string]bool{
	StatusDraft: true, StatusPending: true, StatusInProgress: true,
	StatusPublished: true, StatusFinalized: true,
}

// maxOrderAttempts bounds retries when a concurrent create takes the
// computed sort order first.
const maxOrderAttempts = 3

// Fields are the caller-supplied columns of an agenda item. On Create a zero
// SortOrder means "append"; on Update every field is written as given.
type Fields struct {
	Name                    string `json:"name"`
	Description             string `json:"description"`
	Status                  string `json:"status"`
	SortOrder               int    `json:"sort_order"`
	PresenterID             *uint  `json:"presenter_id"`
	MinistryID              *uint  `json:"ministry_id"`
	MemoID                  *uint  `json:"memo_id"`
	CabinetApprovalRequired bool   `json:"cabinet_approval_required"`
}

// Item is an agenda item with its display names and documents.
type Item struct {
	models.AgendaItem
	MinistryName  string            `json:"ministry_name,omitempty"`
	PresenterName string            `json:"presenter_name,omitempty"`
	Documents     []models.Document `json:"documents"`
}

func (f Fields) apply(a *models.AgendaItem) {
	a.Name = strings.TrimSpace(f.Name)
	a.Description = f.Description
	a.Status = f.Status
	a.SortOrder = f.SortOrder
	a.PresenterID = f.PresenterID
	a.MinistryID = f.MinistryID
	a.MemoID = f.MemoID
	a.CabinetApprovalRequired = f.CabinetApprovalRequired
}

func exists(ctx context.Context, db *gorm.DB, model any, id uint) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// checkRefs validates the memo, presenter and ministry links shared by
// Create and Update.
func checkRefs(ctx context.Context, db *gorm.DB, f Fields) ([]string, error) {
	links := []struct {
		field string
		id    *uint
		model any
		noun  string
	}{
		{"memo_id", f.MemoID, &models.Memo{}, "memo"},
		{"presenter_id", f.PresenterID, &models.User{}, "user"},
		{"ministry_id", f.MinistryID, &models.Ministry{}, "ministry"},
	}
	var errs []string
	for _, l := range links {
		if l.id == nil {
			continue
		}
		ok, err := exists(ctx, db, l.model, *l.id)
		if err != nil {
			return nil, fmt.Errorf("agenda: check %s %d: %w", l.noun, *l.id, err)
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("%s %d does not reference a %s", l.field, *l.id, l.noun))
		}
	}
	return errs, nil
}

// NextSortOrder returns max(sort_order)+1 for the meeting, or 1 when it has
// no agenda items.
func NextSortOrder(ctx context.Context, db *gorm.DB, meetingID uint) (int, error) {
	var highest int
	err := db.WithContext(ctx).Model(&models.AgendaItem{}).
		Where("meeting_id = ?", meetingID).
		Select("COALESCE(MAX(sort_order), 0)").Row().Scan(&highest)
	if err != nil {
		return 0, apperr.FromStore("agenda.next_sort_order", fmt.Errorf("agenda: max sort order for meeting %d: %w", meetingID, err))
	}
	return highest + 1, nil
}

// Create adds an agenda item to a meeting. Without an explicit SortOrder the
// item is appended; a lost race for the computed order is retried.
func Create(ctx context.Context, db *gorm.DB, meetingID uint, f Fields, actor *identity.Actor) (*models.AgendaItem, error) {
	const op = "agenda.create"

	var errs []string
	if strings.TrimSpace(f.Name) == "" {
		errs = append(errs, "name is required")
	}
	if meetingID == 0 {
		errs = append(errs, "meeting_id is required")
	} else {
		ok, err := exists(ctx, db, &models.Meeting{}, meetingID)
		if err != nil {
			return nil, apperr.FromStore(op, fmt.Errorf("agenda: check meeting %d: %w", meetingID, err))
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("meeting_id %d does not reference a meeting", meetingID))
		}
	}
	if f.Status != "" && !validStatuses[f.Status] {
		errs = append(errs, fmt.Sprintf("status: unknown status %q", f.Status))
	}
	if f.SortOrder < 0 {
		errs = append(errs, "sort_order must be positive")
	}
	refErrs, err := checkRefs(ctx, db, f)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	errs = append(errs, refErrs...)
	if len(errs) > 0 {
		return nil, apperr.Validation(op, errs...)
	}
	if actor == nil {
		return nil, apperr.Unauthenticated(op)
	}
	if f.Status == "" {
		f.Status = StatusDraft
	}

	auto := f.SortOrder == 0
	for attempt := 1; ; attempt++ {
		if auto {
			next, err := NextSortOrder(ctx, db, meetingID)
			if err != nil {
				return nil, err
			}
			f.SortOrder = next
		}
		item := models.AgendaItem{MeetingID: meetingID, CreatedBy: actor.ID}
		f.apply(&item)

		err := db.WithContext(ctx).Create(&item).Error
		if err == nil {
			return &item, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.FromStore(op, fmt.Errorf("agenda: create: %w", err))
		}
		if !auto {
			return nil, apperr.Conflict(op, "agenda_item", fmt.Sprintf("sort_order %d is already used in meeting %d", f.SortOrder, meetingID))
		}
		if attempt >= maxOrderAttempts {
			return nil, apperr.Conflict(op, "agenda_item", fmt.Sprintf("could not allocate a sort order in meeting %d after %d attempts", meetingID, attempt))
		}
		logrus.WithFields(logrus.Fields{"meeting_id": meetingID, "sort_order": f.SortOrder, "attempt": attempt}).
			Debug("agenda: sort order taken, retrying")
	}
}

func find(ctx context.Context, db *gorm.DB, op string, id uint) (*models.AgendaItem, error) {
	var item models.AgendaItem
	if err := db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "agenda_item", id)
		}
		return nil, apperr.FromStore(op, fmt.Errorf("agenda: get %d: %w", id, err))
	}
	return &item, nil
}

// Update replaces every caller-supplied field of an agenda item. The meeting
// and creator are fixed at creation.
func Update(ctx context.Context, db *gorm.DB, id uint, f Fields) (*models.AgendaItem, error) {
	const op = "agenda.update"
	item, err := find(ctx, db, op, id)
	if err != nil {
		return nil, err
	}

	var errs []string
	if strings.TrimSpace(f.Name) == "" {
		errs = append(errs, "name is required")
	}
	if !validStatuses[f.Status] {
		errs = append(errs, fmt.Sprintf("status: unknown status %q", f.Status))
	}
	if f.SortOrder <= 0 {
		errs = append(errs, "sort_order must be positive")
	}
	refErrs, err := checkRefs(ctx, db, f)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	if errs = append(errs, refErrs...); len(errs) > 0 {
		return nil, apperr.Validation(op, errs...)
	}

	f.apply(item)
	if err := db.WithContext(ctx).Save(item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict(op, "agenda_item", fmt.Sprintf("sort_order %d is already used in meeting %d", f.SortOrder, item.MeetingID))
		}
		return nil, apperr.FromStore(op, fmt.Errorf("agenda: update %d: %w", id, err))
	}
	return item, nil
}

// Delete removes an agenda item and its documents. Rows go in one
// transaction; blobs are deleted after commit.
func Delete(ctx context.Context, db *gorm.DB, store blob.Store, id uint) (*models.AgendaItem, error) {
	const op = "agenda.delete"
	var (
		item     *models.AgendaItem
		locators []string
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if item, err = find(ctx, tx, op, id); err != nil {
			return err
		}
		if locators, err = document.RemoveForAgenda(ctx, tx, []uint{id}); err != nil {
			return err
		}
		if err := tx.Delete(&models.AgendaItem{}, id).Error; err != nil {
			return fmt.Errorf("agenda: delete %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	if len(locators) > 0 {
		logrus.WithFields(logrus.Fields{"agenda_item_id": id, "documents": len(locators)}).
			Info("agenda: cascade deleted documents")
		document.Purge(ctx, store, locators, "agenda_cascade")
	}
	return item, nil
}

// DeleteForMeeting removes every agenda item of a meeting and their document
// rows inside tx, returning the blob locators to purge after commit.
func DeleteForMeeting(ctx context.Context, tx *gorm.DB, meetingID uint) ([]string, error) {
	var ids []uint
	if err := tx.WithContext(ctx).Model(&models.AgendaItem{}).Where("meeting_id = ?", meetingID).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("agenda: list items of meeting %d: %w", meetingID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	locators, err := document.RemoveForAgenda(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("meeting_id = ?", meetingID).Delete(&models.AgendaItem{}).Error; err != nil {
		return nil, fmt.Errorf("agenda: delete items of meeting %d: %w", meetingID, err)
	}
	return locators, nil
}

// Get returns one agenda item with its display names and documents.
func Get(ctx context.Context, db *gorm.DB, id uint) (*Item, error) {
	const op = "agenda.get"
	item, err := find(ctx, db, op, id)
	if err != nil {
		return nil, err
	}
	items, err := compose(ctx, db, []models.AgendaItem{*item})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return &items[0], nil
}

// List returns a meeting's agenda in sort order, each item with its
// ministry name and documents.
func List(ctx context.Context, db *gorm.DB, meetingID uint) ([]Item, error) {
	var rows []models.AgendaItem
	if err := db.WithContext(ctx).Where("meeting_id = ?", meetingID).
		Order("sort_order ASC").Find(&rows).Error; err != nil {
		return nil, apperr.FromStore("agenda.list", fmt.Errorf("agenda: list meeting %d: %w", meetingID, err))
	}
	items, err := compose(ctx, db, rows)
	if err != nil {
		return nil, apperr.FromStore("agenda.list", err)
	}
	return items, nil
}

func compose(ctx context.Context, db *gorm.DB, rows []models.AgendaItem) ([]Item, error) {
	items := make([]Item, len(rows))
	if len(rows) == 0 {
		return items, nil
	}

	ids := make([]uint, len(rows))
	var ministryIDs, presenterIDs []uint
	for i, r := range rows {
		ids[i] = r.ID
		if r.MinistryID != nil {
			ministryIDs = append(ministryIDs, *r.MinistryID)
		}
		if r.PresenterID != nil {
			presenterIDs = append(presenterIDs, *r.PresenterID)
		}
	}

	ministries := make(map[uint]string)
	if len(ministryIDs) > 0 {
		var ms []models.Ministry
		if err := db.WithContext(ctx).Where("id IN ?", ministryIDs).Find(&ms).Error; err != nil {
			return nil, fmt.Errorf("agenda: ministry names: %w", err)
		}
		for _, m := range ms {
			ministries[m.ID] = m.Name
		}
	}
	presenters, err := identity.DisplayNames(ctx, db, presenterIDs)
	if err != nil {
		return nil, err
	}
	docs, err := document.ListFor(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	for i, r := range rows {
		items[i] = Item{AgendaItem: r, Documents: docs[r.ID]}
		if items[i].Documents == nil {
			items[i].Documents = []models.Document{}
		}
		if r.MinistryID != nil {
			items[i].MinistryName = ministries[*r.MinistryID]
		}
		if r.PresenterID != nil {
			items[i].PresenterName = presenters[*r.PresenterID]
		}
	}
	return items, nil
}
