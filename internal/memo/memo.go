// Package memo owns memo creation, field updates and status transitions.
package memo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/ledger"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/gorm"
)

// Memo statuses. Transitions between them are not restricted.
const (
	StatusDraft       = "draft"
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
)

var validStatuses = map[string]bool{
	StatusDraft: true, StatusSubmitted: true, StatusUnderReview: true,
	StatusApproved: true, StatusRejected: true,
}

var validPriorities = map[string]bool{
	"low": true, "medium": true, "high": true, "urgent": true,
}

var validTypes = map[string]bool{
	"cabinet": true, "committee": true, "information": true,
}

// Draft holds the fields of a new memo. Empty optional fields take the
// column defaults.
type Draft struct {
	Name              string `json:"name"`
	Summary           string `json:"summary"`
	Body              string `json:"body"`
	MemoType          string `json:"memo_type,omitempty"`
	Priority          string `json:"priority,omitempty"`
	Status            string `json:"status,omitempty"`
	MinistryID        uint   `json:"ministry_id"`
	StateDepartmentID *uint  `json:"state_department_id,omitempty"`
	AgencyID          *uint  `json:"agency_id,omitempty"`
}

// Patch is a coalescing update: nil fields keep their stored value. A zero
// StateDepartmentID or AgencyID clears that reference. AffectedEntities
// holds composite identifiers such as "agency_3" and, when set, replaces
// the whole set.
type Patch struct {
	Name              *string
	Summary           *string
	Body              *string
	MemoType          *string
	Priority          *string
	Status            *string
	MinistryID        *uint
	StateDepartmentID *uint
	AgencyID          *uint
	AffectedEntities  *[]string
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status     string
	MinistryID uint
	CreatedBy  uint
}

// View is a memo with its affected-entity identifiers.
type View struct {
	models.Memo
	AffectedEntities []string `json:"affected_entities"`
}

// Created is the result of Create. Received echoes the accepted input for
// diagnostics only.
type Created struct {
	View
	Received map[string]any `json:"received"`
}

// Updated is the result of Update.
type Updated struct {
	View
	PreviousStatus string `json:"-"`
}

func validateEnums(memoType, priority, status string) []string {
	var errs []string
	if memoType != "" && !validTypes[memoType] {
		errs = append(errs, fmt.Sprintf("memo_type: unknown type %q", memoType))
	}
	if priority != "" && !validPriorities[priority] {
		errs = append(errs, fmt.Sprintf("priority: unknown priority %q", priority))
	}
	if status != "" && !validStatuses[status] {
		errs = append(errs, fmt.Sprintf("status: unknown status %q", status))
	}
	return errs
}

// Validate returns every problem with d.
func (d Draft) Validate() []string {
	var errs []string
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(d.Summary) == "" {
		errs = append(errs, "summary is required")
	}
	if strings.TrimSpace(d.Body) == "" {
		errs = append(errs, "body is required")
	}
	if d.MinistryID == 0 {
		errs = append(errs, "ministry_id is required")
	}
	return append(errs, validateEnums(d.MemoType, d.Priority, d.Status)...)
}

func (d Draft) received(refs []ledger.Ref) map[string]any {
	return map[string]any{
		"name":                d.Name,
		"summary":             d.Summary,
		"body_length":         len(d.Body),
		"memo_type":           d.MemoType,
		"priority":            d.Priority,
		"status":              d.Status,
		"ministry_id":         d.MinistryID,
		"state_department_id": d.StateDepartmentID,
		"agency_id":           d.AgencyID,
		"affected_entities":   ledger.Strings(refs),
	}
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Create persists a new memo and its affected-entity set in one transaction.
func Create(ctx context.Context, db *gorm.DB, d Draft, refs []ledger.Ref, actor *identity.Actor) (*Created, error) {
	const op = "memo.create"
	if actor == nil {
		return nil, apperr.Unauthenticated(op)
	}
	if errs := d.Validate(); len(errs) > 0 {
		return nil, apperr.Validation(op, errs...)
	}

	now := time.Now().UTC()
	m := models.Memo{
		Name:              strings.TrimSpace(d.Name),
		Summary:           d.Summary,
		Body:              d.Body,
		MemoType:          defaultString(d.MemoType, "cabinet"),
		Priority:          defaultString(d.Priority, "medium"),
		Status:            defaultString(d.Status, StatusDraft),
		MinistryID:        d.MinistryID,
		StateDepartmentID: d.StateDepartmentID,
		AgencyID:          d.AgencyID,
		CreatedBy:         actor.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if m.Status == StatusSubmitted {
		m.SubmittedAt = &now
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return fmt.Errorf("memo: create: %w", err)
		}
		return ledger.Replace(ctx, tx, m.ID, refs)
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	return &Created{
		View:     View{Memo: m, AffectedEntities: ledger.Strings(refs)},
		Received: d.received(refs),
	}, nil
}

func find(ctx context.Context, db *gorm.DB, op string, id uint) (*models.Memo, error) {
	var m models.Memo
	if err := db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "memo", id)
		}
		return nil, apperr.FromStore(op, fmt.Errorf("memo: get %d: %w", id, err))
	}
	return &m, nil
}

// Get returns a memo with its affected entities.
func Get(ctx context.Context, db *gorm.DB, id uint) (*View, error) {
	const op = "memo.get"
	m, err := find(ctx, db, op, id)
	if err != nil {
		return nil, err
	}
	refs, err := ledger.Get(ctx, db, id)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return &View{Memo: *m, AffectedEntities: refs}, nil
}

// List returns memos matching f, most recently updated first.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.Memo, error) {
	q := db.WithContext(ctx).Model(&models.Memo{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.MinistryID != 0 {
		q = q.Where("ministry_id = ?", f.MinistryID)
	}
	if f.CreatedBy != 0 {
		q = q.Where("created_by = ?", f.CreatedBy)
	}
	memos := []models.Memo{}
	if err := q.Order("updated_at DESC").Order("id DESC").Find(&memos).Error; err != nil {
		return nil, apperr.FromStore("memo.list", fmt.Errorf("memo: list: %w", err))
	}
	return memos, nil
}

// resolve parses the affected-entity identifiers of p and collects every
// field violation alongside them.
func (p Patch) resolve() (*[]ledger.Ref, []string) {
	errs := p.fieldErrors()
	if p.AffectedEntities == nil {
		return nil, errs
	}
	refs, err := ledger.ParseRefs("memo.update", *p.AffectedEntities)
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return nil, append(errs, ae.Violations...)
	}
	return &refs, errs
}

func (p Patch) fieldErrors() []string {
	var errs []string
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		errs = append(errs, "name cannot be blank")
	}
	if p.Summary != nil && strings.TrimSpace(*p.Summary) == "" {
		errs = append(errs, "summary cannot be blank")
	}
	if p.Body != nil && strings.TrimSpace(*p.Body) == "" {
		errs = append(errs, "body cannot be blank")
	}
	if p.MinistryID != nil && *p.MinistryID == 0 {
		errs = append(errs, "ministry_id cannot be zero")
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	if p.MemoType != nil && *p.MemoType == "" {
		errs = append(errs, "memo_type cannot be blank")
	}
	if p.Priority != nil && *p.Priority == "" {
		errs = append(errs, "priority cannot be blank")
	}
	if p.Status != nil && *p.Status == "" {
		errs = append(errs, "status cannot be blank")
	}
	return append(errs, validateEnums(deref(p.MemoType), deref(p.Priority), deref(p.Status))...)
}

// apply merges p into m. SubmittedAt is set on the first move to submitted
// and never cleared.
func (p Patch) apply(m *models.Memo, now time.Time) {
	if p.Name != nil {
		m.Name = strings.TrimSpace(*p.Name)
	}
	if p.Summary != nil {
		m.Summary = *p.Summary
	}
	if p.Body != nil {
		m.Body = *p.Body
	}
	if p.MemoType != nil {
		m.MemoType = *p.MemoType
	}
	if p.Priority != nil {
		m.Priority = *p.Priority
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.MinistryID != nil {
		m.MinistryID = *p.MinistryID
	}
	if p.StateDepartmentID != nil {
		m.StateDepartmentID = clearable(*p.StateDepartmentID)
	}
	if p.AgencyID != nil {
		m.AgencyID = clearable(*p.AgencyID)
	}
	if m.Status == StatusSubmitted && m.SubmittedAt == nil {
		m.SubmittedAt = &now
	}
	m.UpdatedAt = now
}

func clearable(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

// Update merges p into the memo. Only the creator or an admin may update.
// A missing memo is reported before authorization, and authorization before
// validation.
func Update(ctx context.Context, db *gorm.DB, id uint, p Patch, actor *identity.Actor) (*Updated, error) {
	const op = "memo.update"
	if actor == nil {
		return nil, apperr.Unauthenticated(op)
	}

	var out Updated
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := find(ctx, tx, op, id)
		if err != nil {
			return err
		}
		if actor.ID != m.CreatedBy && !actor.IsAdmin() {
			return apperr.Forbidden(op, "memo", id, "only the creator or an admin may update a memo")
		}
		refs, errs := p.resolve()
		if len(errs) > 0 {
			return apperr.Validation(op, errs...)
		}
		out.PreviousStatus = m.Status
		p.apply(m, time.Now().UTC())
		if err := tx.Save(m).Error; err != nil {
			return fmt.Errorf("memo: update %d: %w", id, err)
		}
		if refs != nil {
			if err := ledger.Replace(ctx, tx, id, *refs); err != nil {
				return err
			}
		}
		stored, err := ledger.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		out.View = View{Memo: *m, AffectedEntities: stored}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return &out, nil
}

// Delete removes a draft memo and its associations. Only the creator may
// delete, and only while the memo is a draft; admins do not bypass this.
func Delete(ctx context.Context, db *gorm.DB, id uint, actor *identity.Actor) error {
	const op = "memo.delete"
	if actor == nil {
		return apperr.Unauthenticated(op)
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := find(ctx, tx, op, id)
		if err != nil {
			return err
		}
		if actor.ID != m.CreatedBy {
			return apperr.Forbidden(op, "memo", id, "only the creator may delete a memo")
		}
		if m.Status != StatusDraft {
			return apperr.Forbidden(op, "memo", id, fmt.Sprintf("memo is %s; only drafts can be deleted", m.Status))
		}
		if err := ledger.Remove(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.AgendaItem{}).Where("memo_id = ?", id).Update("memo_id", nil).Error; err != nil {
			return fmt.Errorf("memo: unlink agenda items of %d: %w", id, err)
		}
		if err := tx.Delete(&models.Memo{}, id).Error; err != nil {
			return fmt.Errorf("memo: delete %d: %w", id, err)
		}
		return nil
	})
	return apperr.FromStore(op, err)
}
