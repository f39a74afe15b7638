package ledger

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/dbtest"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/gorm"
)

func TestRefString(t *testing.T) {
	tests := []struct {
		ref  Ref
		want string
	}{
		{MinistryRef(4), "ministry_4"},
		{StateDepartmentRef(12), "state_department_12"},
		{AgencyRef(1), "agency_1"},
	}
	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.ref, got, tt.want)
		}
		parsed, err := ParseRef(tt.want)
		if err != nil {
			t.Fatalf("ParseRef(%q): %v", tt.want, err)
		}
		if parsed != tt.ref {
			t.Errorf("ParseRef(%q) = %+v, want %+v", tt.want, parsed, tt.ref)
		}
	}
}

func TestParseRef_Invalid(t *testing.T) {
	for _, s := range []string{"", "ministry", "ministry_", "_4", "council_4", "ministry_x", "ministry_0", "Ministry_4", "ministry_-1"} {
		if _, err := ParseRef(s); err == nil {
			t.Errorf("ParseRef(%q) succeeded, want error", s)
		}
	}
}

func TestParseRefs_CollectsAll(t *testing.T) {
	_, err := ParseRefs("memo.create", []string{"ministry_1", "bogus", "agency_x"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	var ae *apperr.Error
	errors.As(err, &ae)
	if len(ae.Violations) != 2 {
		t.Errorf("violations = %v, want 2", ae.Violations)
	}

	refs, err := ParseRefs("memo.create", []string{"ministry_1", "agency_2"})
	if err != nil {
		t.Fatalf("ParseRefs: %v", err)
	}
	if len(refs) != 2 || refs[1] != AgencyRef(2) {
		t.Errorf("refs = %+v", refs)
	}
}

func TestReplace_SetsOnlyMatchingKey(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	refs := []Ref{MinistryRef(1), StateDepartmentRef(2), AgencyRef(3)}
	if err := Replace(ctx, db, 10, refs); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	var rows []models.AffectedEntity
	db.Where("memo_id = ?", 10).Order("id").Find(&rows)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for _, row := range rows {
		set := 0
		for _, p := range []*uint{row.MinistryID, row.StateDepartmentID, row.AgencyID} {
			if p != nil {
				set++
			}
		}
		if set != 1 {
			t.Errorf("row %+v has %d foreign keys set, want 1", row, set)
		}
	}

	got, err := Get(ctx, db, 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := []string{"ministry_1", "state_department_2", "agency_3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get = %v, want %v", got, want)
	}
}

func TestReplace_ReplacesWholeSet(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	if err := Replace(ctx, db, 1, []Ref{MinistryRef(1), MinistryRef(2)}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := Replace(ctx, db, 2, []Ref{AgencyRef(9)}); err != nil {
		t.Fatalf("Replace other memo: %v", err)
	}
	if err := Replace(ctx, db, 1, []Ref{AgencyRef(5)}); err != nil {
		t.Fatalf("Replace again: %v", err)
	}

	got, _ := Get(ctx, db, 1)
	if !reflect.DeepEqual(got, []string{"agency_5"}) {
		t.Errorf("memo 1 = %v", got)
	}
	other, _ := Get(ctx, db, 2)
	if !reflect.DeepEqual(other, []string{"agency_9"}) {
		t.Errorf("memo 2 = %v, want untouched", other)
	}

	if err := Replace(ctx, db, 1, nil); err != nil {
		t.Fatalf("Replace(nil): %v", err)
	}
	empty, _ := Get(ctx, db, 1)
	if len(empty) != 0 {
		t.Errorf("after clear = %v", empty)
	}
}

func TestReplace_StoresRepeatedRefOnce(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	refs := []Ref{MinistryRef(4), AgencyRef(2), MinistryRef(4), AgencyRef(2)}
	if err := Replace(ctx, db, 1, refs); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, _ := Get(ctx, db, 1)
	if !reflect.DeepEqual(got, []string{"ministry_4", "agency_2"}) {
		t.Errorf("Get = %v, want [ministry_4 agency_2]", got)
	}
	var n int64
	db.Model(&models.AffectedEntity{}).Where("memo_id = ?", 1).Count(&n)
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
}

func TestReplace_AtomicOnInsertFailure(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	original := []Ref{MinistryRef(1), StateDepartmentRef(2)}
	if err := Replace(ctx, db, 5, original); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	boom := errors.New("disk full")
	dbtest.FailCreate(t, db, "affected_entities", 3, boom)

	err := Replace(ctx, db, 5, []Ref{AgencyRef(7), AgencyRef(8), AgencyRef(9)})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	got, err := Get(ctx, db, 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got, Strings(original)) {
		t.Errorf("after failed replace = %v, want original %v", got, Strings(original))
	}
}

func TestReplace_NestedKeepsOuterUsable(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	boom := errors.New("insert failed")
	dbtest.FailCreate(t, db, "affected_entities", 1, boom)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := Replace(ctx, tx, 3, []Ref{MinistryRef(1)}); !errors.Is(err, boom) {
			t.Errorf("inner err = %v", err)
		}
		return Replace(ctx, tx, 3, []Ref{MinistryRef(2)})
	})
	if err != nil {
		t.Fatalf("outer transaction: %v", err)
	}
	got, _ := Get(ctx, db, 3)
	if !reflect.DeepEqual(got, []string{"ministry_2"}) {
		t.Errorf("got %v", got)
	}
}

func TestReplace_RejectsInvalidRef(t *testing.T) {
	db := dbtest.Open(t)
	err := Replace(context.Background(), db, 1, []Ref{{Type: "council", ID: 1}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
	err = Replace(context.Background(), db, 1, []Ref{MinistryRef(0)})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("zero id err = %v, want validation", err)
	}
}

func TestRemove(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	Replace(ctx, db, 1, []Ref{MinistryRef(1), AgencyRef(2)})
	if err := Remove(ctx, db, 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, _ := Get(ctx, db, 1)
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestRefs_CorruptRow(t *testing.T) {
	db := dbtest.Open(t)
	db.Create(&models.AffectedEntity{MemoID: 1, EntityType: "ministry"})
	if _, err := Refs(context.Background(), db, 1); err == nil {
		t.Error("expected error for row without foreign key")
	}
}
