package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"
)

func TestValidation_ListsEveryViolation(t *testing.T) {
	err := Validation("memo: create", "name is required", "summary is required", "body is required")

	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
	if len(err.Violations) != 3 {
		t.Fatalf("Violations = %d, want 3", len(err.Violations))
	}
	msg := err.Error()
	for _, want := range []string{"memo: create", "name is required", "summary is required", "body is required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want to contain %q", msg, want)
		}
	}
}

func TestIs_MatchesByKindOnly(t *testing.T) {
	err := NotFound("memo: get", "memo", 9)
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFound should match ErrNotFound")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("NotFound should not match ErrValidation")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("wrapped NotFound should match ErrNotFound")
	}
	if err.ID != "9" || err.Resource != "memo" {
		t.Errorf("ID/Resource = %q/%q, want 9/memo", err.ID, err.Resource)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{Validation("op", "x"), KindValidation},
		{NotFound("op", "memo", 1), KindNotFound},
		{Forbidden("op", "memo", 1, "nope"), KindAuthorization},
		{Unauthenticated("op"), KindAuthentication},
		{Storage("op", errors.New("disk")), KindStorage},
		{Conflict("op", "agenda_item", "dup"), KindConflict},
		{context.DeadlineExceeded, KindTimeout},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFromStore(t *testing.T) {
	if FromStore("op", nil) != nil {
		t.Error("FromStore(nil) should be nil")
	}
	if got := KindOf(FromStore("op", gorm.ErrDuplicatedKey)); got != KindConflict {
		t.Errorf("duplicate key kind = %q, want conflict", got)
	}
	if got := KindOf(FromStore("op", gorm.ErrRecordNotFound)); got != KindNotFound {
		t.Errorf("record not found kind = %q, want not_found", got)
	}
	if got := KindOf(FromStore("op", fmt.Errorf("q: %w", context.DeadlineExceeded))); got != KindTimeout {
		t.Errorf("deadline kind = %q, want timeout", got)
	}

	orig := Validation("inner", "x")
	if FromStore("outer", orig) != error(orig) {
		t.Error("classified errors should pass through unchanged")
	}

	plain := FromStore("op", errors.New("syntax"))
	if KindOf(plain) != KindInternal {
		t.Errorf("plain kind = %q, want internal", KindOf(plain))
	}
	if !strings.HasPrefix(plain.Error(), "op: ") {
		t.Errorf("plain error = %q, want op prefix", plain.Error())
	}
}

func TestStorage_Unwraps(t *testing.T) {
	cause := errors.New("bucket unreachable")
	err := Storage("document: attach", cause)
	if !errors.Is(err, cause) {
		t.Error("Storage error should unwrap to its cause")
	}
	if !errors.Is(err, ErrStorage) {
		t.Error("Storage error should match ErrStorage")
	}
}
