package db

import (
	"fmt"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zulandar/docket/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the driver-specific data source name for cfg.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "mysql":
		mc := gomysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Name
		mc.ParseTime = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN(), nil
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port), nil
	case "sqlite":
		return cfg.Path, nil
	}
	return "", fmt.Errorf("db: unsupported driver %q", cfg.Driver)
}

// Dialector returns the GORM dialector for cfg.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}

// Open opens a GORM connection on dialector. Driver errors are translated so
// duplicate keys surface as gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}

// Connect opens a GORM connection to the configured database.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := Open(dialector)
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s %s: %w", cfg.Driver, target(cfg), err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite allows one writer; a single connection keeps transactions
		// from contending with themselves.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// ConnectAdmin opens a connection to the server without selecting a
// database, used for CREATE/DROP DATABASE. SQLite has no server; the file
// itself is the database.
func ConnectAdmin(cfg config.DatabaseConfig) (*gorm.DB, error) {
	admin := cfg
	switch cfg.Driver {
	case "mysql":
		admin.Name = ""
	case "postgres":
		admin.Name = "postgres"
	default:
		return nil, fmt.Errorf("db: admin connection not supported for %s", cfg.Driver)
	}
	dialector, err := Dialector(admin)
	if err != nil {
		return nil, err
	}
	db, err := Open(dialector)
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s: %w", target(cfg), err)
	}
	return db, nil
}

// DropDatabase drops the named database if it exists.
func DropDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteIdent(adminDB, name))
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: drop database %s: %w", name, err)
	}
	return nil
}

// CreateDatabase creates the named database if it doesn't already exist.
// Postgres lacks IF NOT EXISTS for databases, so existence is checked first.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	if adminDB.Dialector.Name() == "postgres" {
		var count int64
		if err := adminDB.Raw("SELECT COUNT(*) FROM pg_database WHERE datname = ?", name).Scan(&count).Error; err != nil {
			return fmt.Errorf("db: check database %s: %w", name, err)
		}
		if count > 0 {
			return nil
		}
		if err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", quoteIdent(adminDB, name))).Error; err != nil {
			return fmt.Errorf("db: create database %s: %w", name, err)
		}
		return nil
	}
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", quoteIdent(adminDB, name))
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

func quoteIdent(db *gorm.DB, name string) string {
	if db.Dialector.Name() == "postgres" {
		return `"` + name + `"`
	}
	return "`" + name + "`"
}

func target(cfg config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" {
		return cfg.Path
	}
	return fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
}
