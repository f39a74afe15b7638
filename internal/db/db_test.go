package db

import (
	"strings"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zulandar/docket/internal/config"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg:  config.DatabaseConfig{Driver: "postgres", Host: "db.internal", Port: 5432, User: "docket", Password: "pw", Name: "cabinet"},
			want: "host=db.internal user=docket password=pw dbname=cabinet port=5432 sslmode=disable TimeZone=UTC",
		},
		{
			name: "sqlite",
			cfg:  config.DatabaseConfig{Driver: "sqlite", Path: "/var/lib/docket/docket.db"},
			want: "/var/lib/docket/docket.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DSN(tt.cfg)
			if err != nil {
				t.Fatalf("DSN: %v", err)
			}
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_MySQL(t *testing.T) {
	dsn, err := DSN(config.DatabaseConfig{Driver: "mysql", Host: "127.0.0.1", Port: 3306, User: "root", Password: "p@ss", Name: "docket"})
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	parsed, err := gomysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if parsed.User != "root" || parsed.Passwd != "p@ss" {
		t.Errorf("credentials = %q/%q", parsed.User, parsed.Passwd)
	}
	if parsed.Addr != "127.0.0.1:3306" || parsed.DBName != "docket" {
		t.Errorf("target = %s/%s", parsed.Addr, parsed.DBName)
	}
	if !parsed.ParseTime {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
	if !strings.Contains(dsn, "charset=utf8mb4") {
		t.Errorf("DSN missing charset: %s", dsn)
	}
}

func TestDSN_UnsupportedDriver(t *testing.T) {
	_, err := DSN(config.DatabaseConfig{Driver: "oracle"})
	if err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("error = %v, want unsupported driver", err)
	}
}

func TestDialector_Names(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := Dialector(config.DatabaseConfig{Driver: driver, Path: ":memory:"})
		if err != nil {
			t.Fatalf("%s: %v", driver, err)
		}
		if d.Name() != driver {
			t.Errorf("Dialector(%s).Name() = %q", driver, d.Name())
		}
	}
}

func TestConnectAdmin_SQLiteUnsupported(t *testing.T) {
	_, err := ConnectAdmin(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err == nil {
		t.Fatal("expected error for sqlite admin connection")
	}
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestAutoMigrate_CreatesAllTables(t *testing.T) {
	db := openSQLite(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range AllModels() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
	if !db.Migrator().HasIndex(&models.AgendaItem{}, "idx_agenda_meeting_sort") {
		t.Error("agenda_items missing (meeting_id, sort_order) unique index")
	}
}

func TestAutoMigrate_Idempotent(t *testing.T) {
	db := openSQLite(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate (1st): %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate (2nd): %v", err)
	}
}

var testSeed = config.SeedConfig{
	Ministries: []config.EntitySeed{
		{Code: "MOH", Name: "Ministry of Health"},
		{Code: "MOF", Name: "Ministry of Finance"},
	},
	StateDepartments: []config.EntitySeed{
		{Code: "SDPH", Name: "State Department for Public Health", Ministry: "MOH"},
	},
	Agencies: []config.EntitySeed{
		{Code: "KRA", Name: "Revenue Authority", Ministry: "MOF"},
		{Code: "NLB", Name: "National Library Board"},
	},
	Users: []config.UserSeed{
		{ID: 1, DisplayName: "Alice Admin", Email: "alice@example.gov", Role: "admin"},
		{ID: 2, DisplayName: "Bob", Email: "bob@example.gov", Role: "user"},
	},
}

func TestSeedReference(t *testing.T) {
	db := openSQLite(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	counts, err := SeedReference(db, testSeed)
	if err != nil {
		t.Fatalf("SeedReference: %v", err)
	}
	if counts.Ministries != 2 || counts.StateDepartments != 1 || counts.Agencies != 2 || counts.Users != 2 {
		t.Errorf("counts = %+v", counts)
	}

	var moh models.Ministry
	if err := db.Where("code = ?", "MOH").First(&moh).Error; err != nil {
		t.Fatalf("query MOH: %v", err)
	}
	var dept models.StateDepartment
	if err := db.Where("code = ?", "SDPH").First(&dept).Error; err != nil {
		t.Fatalf("query SDPH: %v", err)
	}
	if dept.MinistryID == nil || *dept.MinistryID != moh.ID {
		t.Errorf("SDPH.MinistryID = %v, want %d", dept.MinistryID, moh.ID)
	}
	var nlb models.Agency
	if err := db.Where("code = ?", "NLB").First(&nlb).Error; err != nil {
		t.Fatalf("query NLB: %v", err)
	}
	if nlb.MinistryID != nil {
		t.Errorf("NLB.MinistryID = %v, want nil", *nlb.MinistryID)
	}

	var alice models.User
	if err := db.First(&alice, 1).Error; err != nil {
		t.Fatalf("query user 1: %v", err)
	}
	if alice.Role != "admin" || alice.DisplayName != "Alice Admin" {
		t.Errorf("user 1 = %+v", alice)
	}
}

func TestSeedReference_Idempotent(t *testing.T) {
	db := openSQLite(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if _, err := SeedReference(db, testSeed); err != nil {
		t.Fatalf("SeedReference (1st): %v", err)
	}

	renamed := testSeed
	renamed.Ministries = []config.EntitySeed{{Code: "MOH", Name: "Ministry of Health and Sanitation"}}
	if _, err := SeedReference(db, renamed); err != nil {
		t.Fatalf("SeedReference (2nd): %v", err)
	}

	var count int64
	db.Model(&models.Ministry{}).Count(&count)
	if count != 2 {
		t.Errorf("ministries = %d, want 2 (upsert, not duplicate)", count)
	}
	var moh models.Ministry
	db.Where("code = ?", "MOH").First(&moh)
	if moh.Name != "Ministry of Health and Sanitation" {
		t.Errorf("MOH.Name = %q, want updated name", moh.Name)
	}
}

func TestSeedReference_UnknownParentMinistry(t *testing.T) {
	db := openSQLite(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	_, err := SeedReference(db, config.SeedConfig{
		Agencies: []config.EntitySeed{{Code: "X", Name: "Orphan", Ministry: "NOPE"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown parent ministry")
	}
	if !strings.Contains(err.Error(), `parent ministry "NOPE"`) {
		t.Errorf("error = %q, want parent ministry message", err.Error())
	}
	var count int64
	db.Model(&models.Agency{}).Count(&count)
	if count != 0 {
		t.Errorf("agencies = %d, want 0 after rollback", count)
	}
}
