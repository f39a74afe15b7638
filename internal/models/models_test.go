package models

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestMemo_Fields(t *testing.T) {
	typ := reflect.TypeOf(Memo{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Summary", "type:text")
	assertGormTag(t, typ, "Body", "type:text")
	assertGormTag(t, typ, "Status", "default:draft")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "Priority", "default:medium")
	assertGormTag(t, typ, "MinistryID", "not null")
	assertGormTag(t, typ, "CreatedBy", "not null")

	assertFieldType(t, typ, "StateDepartmentID", "*uint")
	assertFieldType(t, typ, "AgencyID", "*uint")
	assertFieldType(t, typ, "SubmittedAt", "*time.Time")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestAffectedEntity_Fields(t *testing.T) {
	typ := reflect.TypeOf(AffectedEntity{})

	assertGormTag(t, typ, "MemoID", "index")
	assertGormTag(t, typ, "EntityType", "not null")
	for _, f := range []string{"MinistryID", "StateDepartmentID", "AgencyID"} {
		assertFieldType(t, typ, f, "*uint")
	}
}

func TestAgendaItem_SortOrderUniquePerMeeting(t *testing.T) {
	typ := reflect.TypeOf(AgendaItem{})

	assertGormTag(t, typ, "MeetingID", "uniqueIndex:idx_agenda_meeting_sort")
	assertGormTag(t, typ, "SortOrder", "uniqueIndex:idx_agenda_meeting_sort")
	assertGormTag(t, typ, "Status", "default:draft")
	assertFieldType(t, typ, "MemoID", "*uint")
	assertFieldType(t, typ, "PresenterID", "*uint")
	assertFieldType(t, typ, "MinistryID", "*uint")
	assertFieldType(t, typ, "CabinetApprovalRequired", "bool")
}

func TestMeeting_Fields(t *testing.T) {
	typ := reflect.TypeOf(Meeting{})

	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Type", "not null")
	assertGormTag(t, typ, "StartAt", "not null")
	assertGormTag(t, typ, "Status", "default:scheduled")
	assertFieldType(t, typ, "EndedAt", "*time.Time")
	assertFieldType(t, typ, "ChairID", "*uint")
	assertFieldType(t, typ, "ApprovedBy", "*uint")
}

func TestMeetingParticipant_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(MeetingParticipant{})

	assertGormTag(t, typ, "MeetingID", "primaryKey")
	assertGormTag(t, typ, "UserID", "primaryKey")
}

func TestDocument_Fields(t *testing.T) {
	typ := reflect.TypeOf(Document{})

	assertGormTag(t, typ, "AgendaItemID", "not null")
	assertGormTag(t, typ, "AgendaItemID", "index")
	assertGormTag(t, typ, "Locator", "not null")
	assertGormTag(t, typ, "UploadedAt", "index")
	assertFieldType(t, typ, "SizeBytes", "int64")
	assertFieldType(t, typ, "UploadedBy", "uint")
}

func TestDocument_MetadataRoundTrip(t *testing.T) {
	doc := Document{}
	doc.Metadata = datatypes.NewJSONType(DocumentMeta{
		OriginalName: "budget.pdf",
		MimeType:     "application/pdf",
		UploaderName: "Alice",
	})

	raw, err := doc.Metadata.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if !strings.Contains(string(raw), `"original_name":"budget.pdf"`) {
		t.Errorf("metadata json = %s, missing original_name", raw)
	}
	if got := doc.Metadata.Data().MimeType; got != "application/pdf" {
		t.Errorf("MimeType = %q, want application/pdf", got)
	}
}

func TestNotification_Defaults(t *testing.T) {
	typ := reflect.TypeOf(Notification{})

	assertGormTag(t, typ, "UserID", "index")
	assertGormTag(t, typ, "Priority", "default:normal")
	assertGormTag(t, typ, "Acknowledged", "default:false")
}

func TestZeroValues(t *testing.T) {
	var m Memo
	if m.SubmittedAt != nil {
		t.Error("zero Memo should have nil SubmittedAt")
	}
	var mt Meeting
	if !mt.StartAt.Equal(time.Time{}) {
		t.Error("zero Meeting should have zero StartAt")
	}
}
