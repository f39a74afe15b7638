// Package ledger manages the set of government entities a memo affects.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/gorm"
)

// EntityType names one of the three kinds of affected entity.
type EntityType string

const (
	Ministry        EntityType = "ministry"
	StateDepartment EntityType = "state_department"
	Agency          EntityType = "agency"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case Ministry, StateDepartment, Agency:
		return true
	}
	return false
}

// Ref identifies one affected entity. Exactly one of the three foreign keys
// of the stored row is derived from it.
type Ref struct {
	Type EntityType
	ID   uint
}

func MinistryRef(id uint) Ref        { return Ref{Type: Ministry, ID: id} }
func StateDepartmentRef(id uint) Ref { return Ref{Type: StateDepartment, ID: id} }
func AgencyRef(id uint) Ref          { return Ref{Type: Agency, ID: id} }

// String returns the composite identifier "{type}_{id}".
func (r Ref) String() string {
	return string(r.Type) + "_" + strconv.FormatUint(uint64(r.ID), 10)
}

// ParseRef parses a composite identifier such as "state_department_12".
func ParseRef(s string) (Ref, error) {
	i := strings.LastIndexByte(s, '_')
	if i <= 0 || i == len(s)-1 {
		return Ref{}, fmt.Errorf("ledger: malformed entity id %q", s)
	}
	t := EntityType(s[:i])
	if !t.Valid() {
		return Ref{}, fmt.Errorf("ledger: unknown entity type %q in %q", s[:i], s)
	}
	id, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil || id == 0 {
		return Ref{}, fmt.Errorf("ledger: invalid entity id in %q", s)
	}
	return Ref{Type: t, ID: uint(id)}, nil
}

// ParseRefs parses every identifier in ids, reporting all malformed ones in
// a single validation error.
func ParseRefs(op string, ids []string) ([]Ref, error) {
	refs := make([]Ref, 0, len(ids))
	var bad []string
	for _, s := range ids {
		r, err := ParseRef(s)
		if err != nil {
			bad = append(bad, fmt.Sprintf("affected_entities: %q is not a valid entity id", s))
			continue
		}
		refs = append(refs, r)
	}
	if len(bad) > 0 {
		return nil, apperr.Validation(op, bad...)
	}
	return refs, nil
}

// Strings returns the composite identifiers of refs.
func Strings(refs []Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

func (r Ref) row(memoID uint) models.AffectedEntity {
	id := r.ID
	row := models.AffectedEntity{MemoID: memoID, EntityType: string(r.Type)}
	switch r.Type {
	case Ministry:
		row.MinistryID = &id
	case StateDepartment:
		row.StateDepartmentID = &id
	case Agency:
		row.AgencyID = &id
	}
	return row
}

func fromRow(row models.AffectedEntity) (Ref, error) {
	t := EntityType(row.EntityType)
	var id *uint
	switch t {
	case Ministry:
		id = row.MinistryID
	case StateDepartment:
		id = row.StateDepartmentID
	case Agency:
		id = row.AgencyID
	default:
		return Ref{}, fmt.Errorf("ledger: row %d has unknown entity type %q", row.ID, row.EntityType)
	}
	if id == nil {
		return Ref{}, fmt.Errorf("ledger: row %d has no %s id", row.ID, t)
	}
	return Ref{Type: t, ID: *id}, nil
}

// Replace swaps the association set of a memo for refs. Repeated refs are
// stored once, in first-seen order. It runs as a nested transaction of tx,
// so a failed insert restores the prior set while leaving the caller's
// transaction usable.
func Replace(ctx context.Context, tx *gorm.DB, memoID uint, refs []Ref) error {
	for _, r := range refs {
		if !r.Type.Valid() || r.ID == 0 {
			return apperr.Validation("ledger.replace", fmt.Sprintf("affected_entities: invalid entity %s", r))
		}
	}
	refs = dedupe(refs)
	return tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("memo_id = ?", memoID).Delete(&models.AffectedEntity{}).Error; err != nil {
			return fmt.Errorf("ledger: clear memo %d: %w", memoID, err)
		}
		for _, r := range refs {
			row := r.row(memoID)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("ledger: insert %s for memo %d: %w", r, memoID, err)
			}
		}
		return nil
	})
}

func dedupe(refs []Ref) []Ref {
	seen := make(map[Ref]bool, len(refs))
	out := make([]Ref, 0, len(refs))
	for _, r := range refs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// Remove deletes every association of a memo.
func Remove(ctx context.Context, tx *gorm.DB, memoID uint) error {
	if err := tx.WithContext(ctx).Where("memo_id = ?", memoID).Delete(&models.AffectedEntity{}).Error; err != nil {
		return fmt.Errorf("ledger: remove memo %d: %w", memoID, err)
	}
	return nil
}

// Refs returns the association set of a memo in insertion order.
func Refs(ctx context.Context, db *gorm.DB, memoID uint) ([]Ref, error) {
	var rows []models.AffectedEntity
	if err := db.WithContext(ctx).Where("memo_id = ?", memoID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ledger: list memo %d: %w", memoID, err)
	}
	refs := make([]Ref, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, nil
}

// Get returns the composite identifiers of a memo's affected entities.
func Get(ctx context.Context, db *gorm.DB, memoID uint) ([]string, error) {
	refs, err := Refs(ctx, db, memoID)
	if err != nil {
		return nil, err
	}
	return Strings(refs), nil
}
