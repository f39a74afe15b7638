package db

import (
	"fmt"

	"github.com/zulandar/docket/internal/config"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Ministry{},
		&models.StateDepartment{},
		&models.Agency{},
		&models.User{},
		&models.Memo{},
		&models.AffectedEntity{},
		&models.Meeting{},
		&models.MeetingParticipant{},
		&models.AgendaItem{},
		&models.Document{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedCounts reports how many rows of each kind SeedReference upserted.
type SeedCounts struct {
	Ministries       int
	StateDepartments int
	Agencies         int
	Users            int
}

// SeedReference upserts ministries, state departments, agencies and users
// from configuration. Departments and agencies name their parent ministry by
// code; ministries are written first so those codes resolve.
func SeedReference(db *gorm.DB, seed config.SeedConfig) (SeedCounts, error) {
	var counts SeedCounts
	err := db.Transaction(func(tx *gorm.DB) error {
		ministryIDs := make(map[string]uint)
		for _, s := range seed.Ministries {
			m := models.Ministry{Code: s.Code, Name: s.Name}
			if err := upsertByCode(tx, &m, "name"); err != nil {
				return fmt.Errorf("seed ministry %q: %w", s.Code, err)
			}
			var stored models.Ministry
			if err := tx.Where("code = ?", s.Code).First(&stored).Error; err != nil {
				return fmt.Errorf("read back ministry %q: %w", s.Code, err)
			}
			ministryIDs[s.Code] = stored.ID
			counts.Ministries++
		}

		for _, s := range seed.StateDepartments {
			parent, err := parentMinistry(tx, ministryIDs, s)
			if err != nil {
				return err
			}
			d := models.StateDepartment{Code: s.Code, Name: s.Name, MinistryID: parent}
			if err := upsertByCode(tx, &d, "name", "ministry_id"); err != nil {
				return fmt.Errorf("seed state department %q: %w", s.Code, err)
			}
			counts.StateDepartments++
		}

		for _, s := range seed.Agencies {
			parent, err := parentMinistry(tx, ministryIDs, s)
			if err != nil {
				return err
			}
			a := models.Agency{Code: s.Code, Name: s.Name, MinistryID: parent}
			if err := upsertByCode(tx, &a, "name", "ministry_id"); err != nil {
				return fmt.Errorf("seed agency %q: %w", s.Code, err)
			}
			counts.Agencies++
		}

		for _, s := range seed.Users {
			u := models.User{ID: s.ID, DisplayName: s.DisplayName, Email: s.Email, Role: s.Role}
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "role", "updated_at"}),
			}).Create(&u)
			if result.Error != nil {
				return fmt.Errorf("seed user %d: %w", s.ID, result.Error)
			}
			counts.Users++
		}
		return nil
	})
	if err != nil {
		return SeedCounts{}, fmt.Errorf("db: %w", err)
	}
	return counts, nil
}

func upsertByCode(tx *gorm.DB, row interface{}, update ...string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns(update),
	}).Create(row).Error
}

// parentMinistry resolves the ministry code of a department or agency seed.
func parentMinistry(tx *gorm.DB, known map[string]uint, s config.EntitySeed) (*uint, error) {
	if s.Ministry == "" {
		return nil, nil
	}
	if id, ok := known[s.Ministry]; ok {
		return &id, nil
	}
	var m models.Ministry
	if err := tx.Where("code = ?", s.Ministry).First(&m).Error; err != nil {
		return nil, fmt.Errorf("seed %q: parent ministry %q: %w", s.Code, s.Ministry, err)
	}
	return &m.ID, nil
}
