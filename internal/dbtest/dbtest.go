// Package dbtest provides an in-memory SQLite database and fixtures for
// package tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zulandar/docket/internal/db"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a migrated in-memory SQLite database. The pool is pinned to a
// single connection so every query sees the same memory database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	gormDB, err := db.Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gormDB
}

var callbackSeq atomic.Int64

// FailCreate makes the nth INSERT into table fail with cause. Inserts into
// other tables are unaffected.
func FailCreate(t testing.TB, gormDB *gorm.DB, table string, nth int, cause error) {
	t.Helper()
	name := fmt.Sprintf("dbtest:fail_create_%d", callbackSeq.Add(1))
	var n int
	err := gormDB.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		n++
		if n == nth {
			tx.AddError(cause)
		}
	})
	if err != nil {
		t.Fatalf("register fail callback: %v", err)
	}
	t.Cleanup(func() { gormDB.Callback().Create().Remove(name) })
}

// FailQuery makes every SELECT from table fail with cause.
func FailQuery(t testing.TB, gormDB *gorm.DB, table string, cause error) {
	t.Helper()
	name := fmt.Sprintf("dbtest:fail_query_%d", callbackSeq.Add(1))
	err := gormDB.Callback().Query().Before("gorm:query").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			tx.AddError(cause)
		}
	})
	if err != nil {
		t.Fatalf("register fail callback: %v", err)
	}
	t.Cleanup(func() { gormDB.Callback().Query().Remove(name) })
}

// Ministry inserts a ministry and returns its ID.
func Ministry(t testing.TB, gormDB *gorm.DB, code, name string) uint {
	t.Helper()
	m := models.Ministry{Code: code, Name: name}
	if err := gormDB.Create(&m).Error; err != nil {
		t.Fatalf("create ministry %s: %v", code, err)
	}
	return m.ID
}

// StateDepartment inserts a state department and returns its ID.
func StateDepartment(t testing.TB, gormDB *gorm.DB, code, name string) uint {
	t.Helper()
	d := models.StateDepartment{Code: code, Name: name}
	if err := gormDB.Create(&d).Error; err != nil {
		t.Fatalf("create state department %s: %v", code, err)
	}
	return d.ID
}

// Agency inserts an agency and returns its ID.
func Agency(t testing.TB, gormDB *gorm.DB, code, name string) uint {
	t.Helper()
	a := models.Agency{Code: code, Name: name}
	if err := gormDB.Create(&a).Error; err != nil {
		t.Fatalf("create agency %s: %v", code, err)
	}
	return a.ID
}

// User inserts a user with an explicit ID.
func User(t testing.TB, gormDB *gorm.DB, id uint, name, role string) models.User {
	t.Helper()
	u := models.User{ID: id, DisplayName: name, Email: fmt.Sprintf("user%d@example.gov", id), Role: role}
	if err := gormDB.Create(&u).Error; err != nil {
		t.Fatalf("create user %d: %v", id, err)
	}
	return u
}

// Meeting inserts a scheduled meeting and returns it.
func Meeting(t testing.TB, gormDB *gorm.DB, name string, start time.Time, createdBy uint) models.Meeting {
	t.Helper()
	m := models.Meeting{
		Name:      name,
		Type:      "cabinet",
		StartAt:   start,
		Location:  "Cabinet Room",
		Status:    "scheduled",
		CreatedBy: createdBy,
	}
	if err := gormDB.Create(&m).Error; err != nil {
		t.Fatalf("create meeting %s: %v", name, err)
	}
	return m
}

// AgendaItem inserts an agenda item with an explicit sort order.
func AgendaItem(t testing.TB, gormDB *gorm.DB, meetingID uint, name string, sortOrder int) models.AgendaItem {
	t.Helper()
	a := models.AgendaItem{MeetingID: meetingID, Name: name, Status: "draft", SortOrder: sortOrder}
	if err := gormDB.Create(&a).Error; err != nil {
		t.Fatalf("create agenda item %s: %v", name, err)
	}
	return a
}
